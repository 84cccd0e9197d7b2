package entity

type User struct {
	Login        string `json:"login"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
