package ledger

// AccessGate 所有者权限校验，只做地址比较，不修改任何状态
type AccessGate struct {
	owner Address
}

func NewAccessGate(owner Address) *AccessGate {
	return &AccessGate{owner: owner}
}

func (g *AccessGate) Owner() Address {
	return g.owner
}

// RequireOwner 调用方不是所有者时返回 ErrUnauthorized
func (g *AccessGate) RequireOwner(caller Address) error {
	if caller != g.owner {
		return ErrUnauthorized
	}
	return nil
}
