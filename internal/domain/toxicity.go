package domain

// ToxicityVerdict 审核客户端的归一化输出，不落库
type ToxicityVerdict struct {
	Label   string  `json:"label"`
	RawName string  `json:"rawLabel"`
	Score   float64 `json:"score"`
	IsToxic bool    `json:"isToxic"`
}

// Translation 评论翻译结果
type Translation struct {
	Direction string `json:"direction"`
	Text      string `json:"text"`
}
