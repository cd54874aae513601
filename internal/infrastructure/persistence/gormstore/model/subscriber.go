package model

type ReviewSubscriber struct {
	ReviewID  string `gorm:"column:review_id;type:text;primaryKey"`
	Principal string `gorm:"column:principal;type:text;primaryKey"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
}

func (ReviewSubscriber) TableName() string {
	return "review_subscribers"
}
