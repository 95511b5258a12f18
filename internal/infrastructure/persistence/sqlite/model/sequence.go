package model

type Sequence struct {
	Name  string `gorm:"column:name;type:varchar(64);primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (Sequence) TableName() string {
	return "sequences"
}
