// Package identityv1 is the wire contract of identity.v1.IdentityService.
// Messages travel as JSON using the codec registered by this package.
package identityv1

type RegisterRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

func (x *RegisterRequest) GetName() string {
	if x == nil {
		return ""
	}
	return x.Name
}

func (x *RegisterRequest) GetPhoneNumber() string {
	if x == nil {
		return ""
	}
	return x.PhoneNumber
}

func (x *RegisterRequest) GetRole() string {
	if x == nil {
		return ""
	}
	return x.Role
}

func (x *RegisterRequest) GetPassword() string {
	if x == nil {
		return ""
	}
	return x.Password
}

type RegisterResponse struct {
	Message   string `json:"message"`
	AccountId string `json:"accountId"`
}

func (x *RegisterResponse) GetMessage() string {
	if x == nil {
		return ""
	}
	return x.Message
}

func (x *RegisterResponse) GetAccountId() string {
	if x == nil {
		return ""
	}
	return x.AccountId
}

type VerifyRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

func (x *VerifyRequest) GetPhoneNumber() string {
	if x == nil {
		return ""
	}
	return x.PhoneNumber
}

func (x *VerifyRequest) GetCode() string {
	if x == nil {
		return ""
	}
	return x.Code
}

type VerifyResponse struct {
	Message string `json:"message"`
}

func (x *VerifyResponse) GetMessage() string {
	if x == nil {
		return ""
	}
	return x.Message
}

type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

func (x *LoginRequest) GetPhoneNumber() string {
	if x == nil {
		return ""
	}
	return x.PhoneNumber
}

func (x *LoginRequest) GetPassword() string {
	if x == nil {
		return ""
	}
	return x.Password
}

type LoginResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	Account *Account `json:"account"`
}

func (x *LoginResponse) GetMessage() string {
	if x == nil {
		return ""
	}
	return x.Message
}

func (x *LoginResponse) GetToken() string {
	if x == nil {
		return ""
	}
	return x.Token
}

func (x *LoginResponse) GetAccount() *Account {
	if x == nil {
		return nil
	}
	return x.Account
}

// WhoamiRequest may leave Token empty when the token is sent as
// "authorization: Bearer <token>" metadata instead.
type WhoamiRequest struct {
	Token string `json:"token,omitempty"`
}

func (x *WhoamiRequest) GetToken() string {
	if x == nil {
		return ""
	}
	return x.Token
}

type WhoamiResponse struct {
	Account *Account `json:"account"`
}

func (x *WhoamiResponse) GetAccount() *Account {
	if x == nil {
		return nil
	}
	return x.Account
}

// Account is the public summary of an account. CreatedAt is RFC 3339.
type Account struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	IsVerified  bool   `json:"isVerified"`
	CreatedAt   string `json:"createdAt"`
}

func (x *Account) GetId() string {
	if x == nil {
		return ""
	}
	return x.Id
}

func (x *Account) GetName() string {
	if x == nil {
		return ""
	}
	return x.Name
}

func (x *Account) GetPhoneNumber() string {
	if x == nil {
		return ""
	}
	return x.PhoneNumber
}

func (x *Account) GetRole() string {
	if x == nil {
		return ""
	}
	return x.Role
}

func (x *Account) GetIsVerified() bool {
	if x == nil {
		return false
	}
	return x.IsVerified
}

func (x *Account) GetCreatedAt() string {
	if x == nil {
		return ""
	}
	return x.CreatedAt
}
