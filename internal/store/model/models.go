package model

import (
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// TradeRecord is one confirmed order. Rows are append-only.
type TradeRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp time.Time      `gorm:"column:timestamp;index"`
	Symbol    string         `gorm:"column:symbol;size:32;index"`
	Type      string         `gorm:"column:type;size:8"` // buy / sell
	Price     float64        `gorm:"column:price"`
	Amount    float64        `gorm:"column:amount"`
	Status    string         `gorm:"column:status;size:24"`
	OrderID   string         `gorm:"column:order_id;size:64"`
	Raw       datatypes.JSON `gorm:"column:raw"`
}

func (TradeRecord) TableName() string { return "trades" }

// PredictionRecord is written by the prediction producer. The dispatcher
// only ever flips SentToTelegram from false to true.
type PredictionRecord struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"column:timestamp;index"`
	Symbol         string    `gorm:"column:symbol;size:32"`
	Timeframe      string    `gorm:"column:timeframe;size:8"`
	Signal         string    `gorm:"column:signal;size:16"`
	Confidence     float64   `gorm:"column:confidence"`
	Price          *float64  `gorm:"column:price"`
	SentToTelegram bool      `gorm:"column:sent_to_telegram;not null;default:false;index"`
}

func (PredictionRecord) TableName() string { return "predictions" }

// RawJSON encodes a venue payload for TradeRecord.Raw.
func RawJSON(v map[string]any) datatypes.JSON {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
