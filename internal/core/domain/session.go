package domain

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

type Tab string

const (
	TabUpload  Tab = "upload"
	TabChat    Tab = "chat"
	TabAITools Tab = "ai-tools"
)

func (t Tab) Valid() bool {
	return t == TabUpload || t == TabChat || t == TabAITools
}
