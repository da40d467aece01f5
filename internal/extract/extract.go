package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/doubantop/internal/domain"
)

// 页面结构标记（豆瓣电影 Top250 列表页）。
const (
	containerSelector = "ol.grid_view"
	itemSelector      = "li"
	titleSelector     = "span.title"
	ratingSelector    = "span.rating_num"
	starSelector      = "div.star"
	taglineSelector   = "span.inq"
)

// 评价人数文本形如 "123456人评价" 或 "(123456人评价)"：两端的标签字与括号一并去掉。
const reviewCutset = "人评价()（） \t\n"

// Extraction 是一页的解析明细。
type Extraction struct {
	Records []domain.MovieRecord

	// ContainerFound=false 表示页面没有列表容器（例如已越过最后一页）。
	ContainerFound bool
	Items          int
	Skipped        int
}

// Extract 解析列表页并返回按文档顺序排列的记录。
// 容器缺失、HTML 无法解析时都返回空切片。
func Extract(body []byte) []domain.MovieRecord {
	ex, err := ExtractDetailed(body)
	if err != nil {
		return []domain.MovieRecord{}
	}
	return ex.Records
}

// ExtractDetailed 与 Extract 相同，但额外返回容器/条目/跳过数，供上层区分“空页”与“解析失败”。
//
// 纯函数：相同输入 => 相同输出。单个条目缺少标题或评价区损坏只会跳过该条目，不影响同页其他条目。
func ExtractDetailed(body []byte) (Extraction, error) {
	ex := Extraction{Records: []domain.MovieRecord{}}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ex, err
	}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return ex, nil
	}
	ex.ContainerFound = true

	container.ChildrenFiltered(itemSelector).Each(func(_ int, item *goquery.Selection) {
		ex.Items++
		rec, ok := buildRecord(item)
		if !ok {
			ex.Skipped++
			return
		}
		ex.Records = append(ex.Records, rec)
	})
	return ex, nil
}

// buildRecord 在 title 缺失或评价区结构损坏时跳过条目；其他字段各自回退默认值。
func buildRecord(item *goquery.Selection) (domain.MovieRecord, bool) {
	title, ok := firstText(item, titleSelector)
	if !ok {
		return domain.MovieRecord{}, false
	}

	rating, ok := firstText(item, ratingSelector)
	if !ok {
		rating = domain.NoRating
	}
	reviews, ok := reviewCount(item)
	if !ok {
		return domain.MovieRecord{}, false
	}
	tagline, ok := firstText(item, taglineSelector)
	if !ok {
		tagline = domain.NoTagline
	}

	return domain.MovieRecord{
		Title:       title,
		Rating:      rating,
		ReviewCount: reviews,
		Tagline:     tagline,
	}, true
}

func firstText(s *goquery.Selection, selector string) (string, bool) {
	node := s.Find(selector).First()
	if node.Length() == 0 {
		return "", false
	}
	text := normSpace(node.Text())
	return text, text != ""
}

// reviewCount 取 div.star 下最后一个 span，去掉“人评价”和括号，得到纯数字串。
//
// div.star 缺失或文本为空时回退 NoReviews；div.star 存在却没有 span 视为结构损坏，ok=false。
func reviewCount(item *goquery.Selection) (string, bool) {
	star := item.Find(starSelector).First()
	if star.Length() == 0 {
		return domain.NoReviews, true
	}
	last := star.Find("span").Last()
	if last.Length() == 0 {
		return "", false
	}
	s := strings.Trim(strings.TrimSpace(last.Text()), reviewCutset)
	if s == "" {
		return domain.NoReviews, true
	}
	return s, true
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
