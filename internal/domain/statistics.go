package domain

// DashboardCounts 管理端仪表盘计数
type DashboardCounts struct {
	Categories    int64 `json:"categories"`
	Messages      int64 `json:"messages"`
	Unread        int64 `json:"unread"`
	Drafts        int64 `json:"drafts"`
	Trash         int64 `json:"trash"`
	Notifications int64 `json:"notifications"`
	Comments      int64 `json:"comments"`
	ToxicComments int64 `json:"toxicComments"`
	Users         int64 `json:"users"`
}

// Dashboard 管理端仪表盘数据
type Dashboard struct {
	Counts         DashboardCounts `json:"counts"`
	RecentMessages []MessageView   `json:"recentMessages"`
	RecentComments []CommentView   `json:"recentComments"`
	CategoryStats  []CategoryStat  `json:"categoryStats"`
}
