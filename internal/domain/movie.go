package domain

const (
	// NoRating 是缺少评分节点时的占位值。
	NoRating = "暂无评分"
	// NoTagline 是缺少一句话简介时的占位值。
	NoTagline = "暂无简介"
	// NoReviews 是缺少评价人数容器时的默认值。
	NoReviews = "0"
)

// MovieRecord 是单个榜单条目解析得到的最小结构。
//
// 约束：Title 必填（缺失则整条丢弃）；其他字段缺失时回退为占位值，而不是让整条失败。
type MovieRecord struct {
	Title       string `json:"title"`
	Rating      string `json:"rating"`
	ReviewCount string `json:"review_count"`
	Tagline     string `json:"tagline"`
}

// RunResult 是一次 run 累积的全部记录。
// 顺序 = 页顺序，页内为文档顺序；run 结束后只读。
type RunResult []MovieRecord
