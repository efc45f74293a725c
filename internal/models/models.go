package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OrderStatusPending   = "unconfirmed"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PhoneNumber  string `gorm:"unique;not null"          json:"phone_number"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Book struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Title       string  `gorm:"not null;index"            json:"title"`
	Author      string  `gorm:"not null;index"            json:"author"`
	Year        int     `json:"year"`
	Price       float64 `gorm:"not null"                  json:"price"`
	Genre       string  `gorm:"index"                     json:"genre"`
	Cover       string  `json:"cover"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	OrdersCount int     `gorm:"default:0"                 json:"orders_count"`
}

type CartItem struct {
	ID     uint `gorm:"primaryKey"               json:"id"`
	UserID uint `gorm:"index;not null"           json:"user_id"`
	BookID uint `gorm:"not null"                 json:"book_id"`
	Count  int  `gorm:"default:1;check:count>0"  json:"count"`
}

// OrderItem is a per-user checkout snapshot. Price and TotalPrice are
// captured at draft time and do not follow later Book price changes.
// OrderID stays 0 while the item belongs to the staged draft and is set
// once the pending order is created.
type OrderItem struct {
	ID         uint    `gorm:"primaryKey"      json:"id"`
	UserID     uint    `gorm:"index;not null"  json:"user_id"`
	OrderID    uint    `gorm:"index"           json:"order_id"`
	BookID     uint    `gorm:"not null"        json:"book_id"`
	Title      string  `json:"title"`
	Count      int     `gorm:"not null"        json:"count"`
	Price      float64 `gorm:"not null"        json:"price"`
	TotalPrice float64 `gorm:"not null"        json:"total_price"`
}

type OrderDetails struct {
	Recipient   string  `json:"recipient"`
	PhoneNumber string  `json:"phone_number"`
	Delivery    string  `json:"delivery"`
	Payment     string  `json:"payment"`
	Total       float64 `json:"total"`
}

type Order struct {
	ID      uint                             `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID  uint                             `gorm:"index;not null"               json:"user_id"`
	Date    time.Time                        `json:"date"`
	Status  string                           `gorm:"not null;default:unconfirmed" json:"status"`
	Address string                           `json:"address"`
	Books   datatypes.JSONType[map[uint]int] `json:"books"`
	Details datatypes.JSONType[OrderDetails] `json:"details"`
}

type Review struct {
	ID     uint   `gorm:"primaryKey"      json:"id"`
	UserID uint   `gorm:"index;not null"  json:"user_id"`
	BookID uint   `gorm:"index;not null"  json:"book_id"`
	Text   string `gorm:"size:500"        json:"text"`
	Rating int    `gorm:"not null"        json:"rating"`
}
