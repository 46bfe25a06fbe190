package blockchain

type EventType = string

const (
	ConfigInitializedEventType  EventType = "ConfigInitialized"
	LotteryInitializedEventType EventType = "LotteryInitialized"
	TicketBoughtEventType       EventType = "TicketBought"
	WinnerCommittedEventType    EventType = "WinnerCommitted"
	WinnerSelectedEventType     EventType = "WinnerSelected"
	WinningsClaimedEventType    EventType = "WinningsClaimed"
	LotteryRestartedEventType   EventType = "LotteryRestarted"
)

type ConfigInitialized struct {
	SaleStart   int64  `json:"saleStart"`
	SaleEnd     int64  `json:"saleEnd"`
	TicketPrice uint64 `json:"ticketPrice"`
	Authority   string `json:"authority"`
}

type LotteryInitialized struct {
	RoundID    uint64 `json:"roundId"`
	Collection string `json:"collection"`
}

type TicketBought struct {
	Ticket              string `json:"ticket"`
	Purchaser           string `json:"purchaser"`
	Price               uint64 `json:"price"`
	CurrentTotalTickets uint64 `json:"currentTotalTickets"`
}

type WinnerCommitted struct {
	Handle string `json:"handle"`
	Seed   string `json:"seed"`
}

type WinnerSelected struct {
	Handle       string `json:"handle"`
	Winner       uint64 `json:"winner"`
	TotalTickets uint64 `json:"totalTickets"`
}

type WinningsClaimed struct {
	Ticket      string `json:"ticket"`
	TicketName  string `json:"ticketName"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

type LotteryRestarted struct {
	PreviousRoundID uint64 `json:"previousRoundId"`
	RoundID         uint64 `json:"roundId"`
	SaleStart       int64  `json:"saleStart"`
	SaleEnd         int64  `json:"saleEnd"`
	TicketPrice     uint64 `json:"ticketPrice"`
}
