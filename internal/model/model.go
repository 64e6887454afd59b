package model

import (
	"time"
)

type MovieCategory string

const (
	CategoryAction      MovieCategory = "Action"
	CategoryComedy      MovieCategory = "Comedy"
	CategoryDrama       MovieCategory = "Drama"
	CategoryDocumentary MovieCategory = "Documentary"
	CategoryCartoon     MovieCategory = "Cartoon"
	CategoryHorror      MovieCategory = "Horror"
)

type Movie struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Price       float64       `gorm:"not null" json:"price"`
	ImageURL    string        `gorm:"size:512" json:"image_url"`
	StartDate   time.Time     `gorm:"not null" json:"start_date"`
	Category    MovieCategory `gorm:"type:varchar(32);not null" json:"category"`
	CinemaID    uint          `gorm:"not null;index" json:"cinema_id"`
	ProducerID  uint          `gorm:"not null;index" json:"producer_id"`

	Cinema   *Cinema   `gorm:"foreignKey:CinemaID;constraint:OnDelete:RESTRICT" json:"-"`
	Producer *Producer `gorm:"foreignKey:ProducerID;constraint:OnDelete:RESTRICT" json:"-"`
}

type Actor struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	FullName string `gorm:"size:255;not null" json:"full_name"`
}

type Producer struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	FullName string `gorm:"size:255;not null" json:"full_name"`
}

type Cinema struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// ActorMovie is one "actor appears in movie" link. A movie's links are
// replaced wholesale on every update.
type ActorMovie struct {
	MovieID uint `gorm:"primaryKey;autoIncrement:false" json:"movie_id"`
	ActorID uint `gorm:"primaryKey;autoIncrement:false;index" json:"actor_id"`

	Movie *Movie `gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE" json:"-"`
	Actor *Actor `gorm:"foreignKey:ActorID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (ActorMovie) TableName() string {
	return "actors_movies"
}

// Order is immutable purchase history.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	OrderDate time.Time `gorm:"not null" json:"order_date"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

type OrderItem struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	OrderID uint    `gorm:"not null;index" json:"order_id"`
	MovieID uint    `gorm:"not null;index" json:"movie_id"`
	Price   float64 `gorm:"not null" json:"price"`

	Movie *Movie `gorm:"foreignKey:MovieID;constraint:OnDelete:RESTRICT" json:"-"`
}

// Purchase is one order item flattened with its order and the movie it
// bought. It is a read model, not a table.
type Purchase struct {
	OrderID     uint
	OrderItemID uint
	UserID      string
	OrderDate   time.Time
	PricePaid   float64

	MovieID          uint
	MovieName        string
	MovieDescription string
	MovieImageURL    string
	MovieCategory    MovieCategory
	MovieStartDate   time.Time
	CinemaName       string
	ProducerName     string
}
