package domain

// Flavor 选择主题模板、发件人过滤与提取方式。
type Flavor string

const (
	FlavorResetLink  Flavor = "reset-link"   // 密码重置链接
	FlavorHousehold  Flavor = "household"    // 家庭验证链接 / 临时访问码
	FlavorSignInCode Flavor = "sign-in-code" // 登录验证码
)

// ExtractionKind 提取结果的类型。
type ExtractionKind string

const (
	KindLink ExtractionKind = "link"
	KindCode ExtractionKind = "code"
)

// Valid 判断 Flavor 是否为已知取值。
func (f Flavor) Valid() bool {
	switch f {
	case FlavorResetLink, FlavorHousehold, FlavorSignInCode:
		return true
	}
	return false
}

// Kind 返回该 Flavor 产出的结果类型。
func (f Flavor) Kind() ExtractionKind {
	if f == FlavorSignInCode {
		return KindCode
	}
	return KindLink
}

func (f Flavor) String() string { return string(f) }
