package wxwork

// Default endpoints of the hosted WeChat Work API. All of them can be
// overridden in configuration for private deployments and tests.
const (
	DefaultAPIBase      = "https://qyapi.weixin.qq.com/cgi-bin"
	DefaultAuthorizeURL = "https://open.weixin.qq.com/connect/oauth2/authorize"
	DefaultQRLoginURL   = "https://open.work.weixin.qq.com/wwopen/sso/qrConnect"
	DefaultScope        = "snsapi_base"
)

// Credentials is the corp-level API key pair plus the agent the bridge acts
// as. Static for the lifetime of a Client.
type Credentials struct {
	CorpID     string
	CorpSecret string
	AgentID    string
}

// TokenResponse is the body returned by {base}/gettoken.
type TokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// User is the profile returned by {base}/user/get.
type User struct {
	UserID string `json:"userid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type userResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	User
}

// getuserinfo reports the resolved member with a capitalized UserId key,
// unlike every other endpoint.
type userInfoResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	UserID  string `json:"UserId"`
}

type sendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Message is the JSON body POSTed to {base}/message/send.
type Message struct {
	MsgType  string   `json:"msgtype"`
	AgentID  string   `json:"agentid"`
	Markdown Markdown `json:"markdown"`
	ToUser   string   `json:"touser,omitempty"`
	ToParty  string   `json:"toparty,omitempty"`
	ToTag    string   `json:"totag,omitempty"`
}

type Markdown struct {
	Content string `json:"content"`
}

// AuthorizeParams are the query parameters of the in-app OAuth authorize
// endpoint, used when the browser is the WeChat Work built-in one.
type AuthorizeParams struct {
	AppID        string `url:"appid"`
	ResponseType string `url:"response_type"`
	Scope        string `url:"scope"`
	State        string `url:"state"`
	RedirectURI  string `url:"redirect_uri"`
}

// QRLoginParams are the query parameters of the QR-code login endpoint, used
// for every other browser.
type QRLoginParams struct {
	AppID       string `url:"appid"`
	AgentID     string `url:"agentid"`
	State       string `url:"state"`
	RedirectURI string `url:"redirect_uri"`
}

type tokenParams struct {
	CorpID     string `url:"corpid"`
	CorpSecret string `url:"corpsecret"`
}

type userInfoParams struct {
	AccessToken string `url:"access_token"`
	Code        string `url:"code"`
}

type userGetParams struct {
	AccessToken string `url:"access_token"`
	UserID      string `url:"userid"`
}

type sendParams struct {
	AccessToken string `url:"access_token"`
}
