package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Role 用户角色
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// AdminsGroup 管理员实时推送分组
const AdminsGroup = "admins"

// Roles 角色集合，数据库中以逗号分隔存储
type Roles []Role

// Has 判断是否包含指定角色
func (r Roles) Has(role Role) bool {
	for _, item := range r {
		if item == role {
			return true
		}
	}
	return false
}

// Value 实现 driver.Valuer
func (r Roles) Value() (driver.Value, error) {
	parts := make([]string, 0, len(r))
	for _, role := range r {
		parts = append(parts, string(role))
	}
	return strings.Join(parts, ","), nil
}

// Scan 实现 sql.Scanner
func (r *Roles) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported roles column type %T", src)
	}

	out := Roles{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, Role(part))
		}
	}
	*r = out
	return nil
}

// User 表示注册用户
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string    `json:"name" gorm:"type:varchar(100)"`
	Surname      string    `json:"surname" gorm:"type:varchar(100)"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	ImageURL     string    `json:"imageUrl,omitempty" gorm:"type:varchar(500)"`
	Roles        Roles     `json:"roles" gorm:"type:varchar(100)"`
	IsActive     bool      `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin 判断用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Roles.Has(RoleAdmin)
}

// FullName 用户全名
func (u *User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// Groups 用户连接实时通道后加入的分组
func (u *User) Groups() []string {
	var groups []string
	if email := NormalizeEmail(u.Email); email != "" {
		groups = append(groups, email)
	}
	if u.IsAdmin() {
		groups = append(groups, AdminsGroup)
	}
	return groups
}

func equalFoldEmail(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
