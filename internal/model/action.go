package model

// ActionKind 受限流约束的用户行为类型
type ActionKind string

const (
	ActionComment ActionKind = "comment"
	ActionLike    ActionKind = "like"
	ActionPost    ActionKind = "post"
	ActionSearch  ActionKind = "search"
	ActionReport  ActionKind = "report"
	ActionPin     ActionKind = "pin"
)

// ActionKinds 返回所有内置行为类型（策略表至少需要覆盖这些）
func ActionKinds() []ActionKind {
	return []ActionKind{ActionComment, ActionLike, ActionPost, ActionSearch, ActionReport, ActionPin}
}

// Role 用户角色
type Role string

const (
	RoleNormal Role = "normal"
	RoleAdmin  Role = "admin"
)
