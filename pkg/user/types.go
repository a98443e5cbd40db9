package user

// Type is the account tier. Tiers are ordered: each includes the rights of the ones below.
type Type string

const (
	Normal     Type = "normal"
	Premium    Type = "premium"
	Admin      Type = "admin"
	SuperAdmin Type = "super_admin"
)

var rank = map[Type]int{
	Normal:     1,
	Premium:    2,
	Admin:      3,
	SuperAdmin: 4,
}

// AtLeast reports whether t grants the rights of min. Unknown tiers grant nothing.
func (t Type) AtLeast(min Type) bool {
	r, ok := rank[t]
	return ok && r >= rank[min]
}

// Info is the profile of the signed-in user.
type Info struct {
	ID                 string  `json:"id,omitempty"`
	Email              string  `json:"email,omitempty"`
	Nickname           string  `json:"nickname,omitempty"`
	Avatar             string  `json:"avatar,omitempty"`
	Description        string  `json:"description,omitempty"`
	Type               Type    `json:"type,omitempty"`
	Model              string  `json:"model,omitempty"` // Preferred chat model
	ChargedAmount      float64 `json:"charged_amount,omitempty"`
	TotalRequests      int     `json:"total_requests,omitempty"`
	UsedRequests       int     `json:"used_requests,omitempty"`
	TotalImageRequests int     `json:"total_image_requests,omitempty"`
	UsedImageRequests  int     `json:"used_image_requests,omitempty"`
	MerchantOrderID    int64   `json:"merchant_order_id,omitempty"`
	IsFeishuUser       bool    `json:"is_feishu_user,omitempty"`
	IsGithubUser       bool    `json:"is_github_user,omitempty"`
}

// Account is returned when an admin creates a user.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Query filters the admin user list.
type Query struct {
	Page  int
	Limit int
	Email string
	Type  Type
}
