package domain

// Destination 登录后的落地页
type Destination int

const (
	DestinationNone Destination = iota
	DestinationAdminDashboard
	DestinationUserInbox
)

// String 实现 fmt.Stringer
func (d Destination) String() string {
	switch d {
	case DestinationAdminDashboard:
		return "admin_dashboard"
	case DestinationUserInbox:
		return "user_inbox"
	default:
		return "none"
	}
}

// MarshalText 以字符串形式序列化
func (d Destination) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ResolveDestination 根据角色集合决定登录落地页，管理员优先
func ResolveDestination(roles []Role) Destination {
	set := Roles(roles)
	switch {
	case set.Has(RoleAdmin):
		return DestinationAdminDashboard
	case set.Has(RoleUser):
		return DestinationUserInbox
	default:
		return DestinationNone
	}
}
