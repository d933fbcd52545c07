package model

import "time"

// Event 表示 EMS 报表中的一条预约，对应日历中的一个事件
type Event struct {
	Subject     string    `json:"subject"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}
