package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/model"
)

// Policy 窗口内最多 Limit 次
type Policy struct {
	Limit  int
	Window time.Duration
}

// Message 超额时给用户看的提示
func (p Policy) Message(kind model.ActionKind) string {
	if p.Window < time.Minute {
		return fmt.Sprintf("Rate limit exceeded. Maximum %d %ss per %d second(s).", p.Limit, kind, int(p.Window/time.Second))
	}
	return fmt.Sprintf("Rate limit exceeded. Maximum %d %ss per %d minute(s).", p.Limit, kind, int(p.Window/time.Minute))
}

// BypassRule 角色 Role 执行 Action 时不受配额约束
type BypassRule struct {
	Role   model.Role
	Action model.ActionKind
}

// PolicyTable 构造后只读的策略表
type PolicyTable struct {
	policies map[model.ActionKind]Policy
	bypass   map[BypassRule]struct{}
}

func NewPolicyTable(policies map[model.ActionKind]Policy, bypass []BypassRule) *PolicyTable {
	t := &PolicyTable{
		policies: make(map[model.ActionKind]Policy, len(policies)),
		bypass:   make(map[BypassRule]struct{}, len(bypass)),
	}
	for k, p := range policies {
		t.policies[k] = p
	}
	for _, r := range bypass {
		t.bypass[r] = struct{}{}
	}
	return t
}

// DefaultPolicyTable 内置默认策略：管理员发帖不限
func DefaultPolicyTable() *PolicyTable {
	return NewPolicyTable(map[model.ActionKind]Policy{
		model.ActionComment: {Limit: 10, Window: 60 * time.Second},
		model.ActionLike:    {Limit: 30, Window: 60 * time.Second},
		model.ActionPost:    {Limit: 5, Window: time.Hour},
		model.ActionSearch:  {Limit: 60, Window: 60 * time.Second},
		model.ActionReport:  {Limit: 5, Window: time.Hour},
		model.ActionPin:     {Limit: 3, Window: 30 * 24 * time.Hour},
	}, []BypassRule{{Role: model.RoleAdmin, Action: model.ActionPost}})
}

func PolicyTableFromConfig(cfg config.RateLimitConfig) *PolicyTable {
	policies := make(map[model.ActionKind]Policy, len(cfg.Policies))
	for k, p := range cfg.Policies {
		policies[model.ActionKind(k)] = Policy{Limit: p.Limit, Window: time.Duration(p.Window) * time.Second}
	}
	rules := make([]BypassRule, 0, len(cfg.Bypass))
	for _, b := range cfg.Bypass {
		rules = append(rules, BypassRule{Role: model.Role(b.Role), Action: model.ActionKind(b.Action)})
	}
	return NewPolicyTable(policies, rules)
}

func (t *PolicyTable) Lookup(kind model.ActionKind) (Policy, bool) {
	p, ok := t.policies[kind]
	return p, ok
}

func (t *PolicyTable) Bypasses(role model.Role, kind model.ActionKind) bool {
	_, ok := t.bypass[BypassRule{Role: role, Action: kind}]
	return ok
}

// Kinds 按名称排序
func (t *PolicyTable) Kinds() []model.ActionKind {
	kinds := make([]model.ActionKind, 0, len(t.policies))
	for k := range t.policies {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RetentionFor 某行为日志需要保留的时长：不短于 base，也不短于它自身的窗口
func (t *PolicyTable) RetentionFor(kind model.ActionKind, base time.Duration) time.Duration {
	if p, ok := t.policies[kind]; ok && p.Window > base {
		return p.Window
	}
	return base
}
