package model

import "github.com/shopspring/decimal"

// PaymentCompleted событие платёжного шлюза об успешной оплате.
type PaymentCompleted struct {
	TicketID   int64
	PayerEmail string
	AmountPaid decimal.Decimal // в основных единицах валюты
	PaymentID  string
	StudentID  *int64 // явный получатель, если шлюз его передал
}

// PriceAmount цена продукта в основных единицах валюты.
func (p *TicketProduct) PriceAmount() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}
