package domain

// Category 消息分类
type Category struct {
	ID      uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name    string `json:"name" gorm:"type:varchar(100);not null"`
	IconURL string `json:"iconUrl,omitempty" gorm:"type:varchar(500)"`
	Status  bool   `json:"status" gorm:"default:true"`
}

// CategoryStat 按分类名聚合的消息数
type CategoryStat struct {
	CategoryName string `json:"categoryName"`
	Count        int    `json:"count"`
}
