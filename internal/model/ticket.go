package model

import "time"

// TicketProduct пакет минут, который продаёт учитель.
type TicketProduct struct {
	ID         int64     `json:"id"`
	TeacherID  int64     `json:"teacher_id"`
	Name       string    `json:"name"`
	Minutes    int       `json:"minutes"`
	BundleQty  int       `json:"bundle_qty"`
	PriceCents int64     `json:"price_cents"`
	ValidDays  int       `json:"valid_days"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// TotalMinutes минуты, которые начисляются за одну покупку.
func (p *TicketProduct) TotalMinutes() int {
	return p.Minutes * p.BundleQty
}

// TicketBalance запись леджера: одна покупка одного студента.
type TicketBalance struct {
	ID               int64     `json:"id"`
	StudentID        int64     `json:"student_id"`
	TicketID         int64     `json:"ticket_id"`
	TeacherID        int64     `json:"teacher_id"`
	RemainingMinutes int       `json:"remaining_minutes"`
	PurchasedAt      time.Time `json:"purchased_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	PaymentID        string    `json:"payment_id"`
}

// UsableAt проверяет, можно ли списывать с баланса в момент now.
func (b *TicketBalance) UsableAt(now time.Time) bool {
	return b.RemainingMinutes > 0 && now.Before(b.ExpiresAt)
}

// BalanceSummary сводка по балансам студента.
type BalanceSummary struct {
	StudentID      int64            `json:"student_id"`
	UsableMinutes  int              `json:"usable_minutes"`
	ExpiredMinutes int              `json:"expired_minutes"`
	Balances       []*TicketBalance `json:"balances"`
}
