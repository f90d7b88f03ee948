package model

import "time"

const (
	SupportCategoryBug      = "Bug or issue"
	SupportCategoryFeature  = "Feature request"
	SupportCategoryQuestion = "Question"
	SupportCategoryOther    = "Other"
)

func ValidSupportCategory(c string) bool {
	switch c {
	case SupportCategoryBug, SupportCategoryFeature, SupportCategoryQuestion, SupportCategoryOther:
		return true
	}
	return false
}

type SupportMessage struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
