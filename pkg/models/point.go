package models

// TransactionType is the kind of a point mutation.
type TransactionType string

const (
	TransactionCharge TransactionType = "CHARGE"
	TransactionUse    TransactionType = "USE"
)

// UserPoint is a balance snapshot for a single account.
// A user that was never written reads as a zero snapshot.
type UserPoint struct {
	ID           uint64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Point        int64  `json:"point" gorm:"not null;default:0" validate:"min=0"`
	UpdateMillis int64  `json:"updateMillis" gorm:"not null"`
}

// TableName overrides the gorm table name
func (UserPoint) TableName() string {
	return "user_points"
}

// EmptyUserPoint returns the zero snapshot for id.
func EmptyUserPoint(id uint64) *UserPoint {
	return &UserPoint{ID: id}
}

// PointHistory is an immutable record of one committed mutation.
type PointHistory struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       uint64          `json:"userId" gorm:"index;not null"`
	Amount       int64           `json:"amount" gorm:"not null" validate:"gt=0"`
	Type         TransactionType `json:"type" gorm:"type:varchar(16);not null" validate:"required,oneof=CHARGE USE"`
	UpdateMillis int64           `json:"updateMillis" gorm:"not null"`
}

// TableName overrides the gorm table name
func (PointHistory) TableName() string {
	return "point_histories"
}
