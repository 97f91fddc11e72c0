package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

// MoneyScale - точность денежных колонок (DECIMAL(18,2)).
const MoneyScale = 2

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewPositiveMoney проверяет, что сумма строго положительна и укладывается в точность хранения.
func NewPositiveMoney(field string, amount decimal.Decimal, currency string) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, apperror.Validation("%s должна быть положительной", field)
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return Money{}, apperror.Validation("%s допускает не более %d знаков после запятой", field, MoneyScale)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(MoneyScale), m.Currency)
}

// FeeSplit - разбивка суммы сделки на выплату продавцу и комиссию площадки.
type FeeSplit struct {
	SellerAmount decimal.Decimal
	PlatformFee  decimal.Decimal
}

// SplitFee считает комиссию с округлением до копеек; продавец получает остаток,
// поэтому SellerAmount + PlatformFee всегда равно total без дрейфа.
func SplitFee(total, rate decimal.Decimal) (FeeSplit, error) {
	if !total.IsPositive() {
		return FeeSplit{}, apperror.Validation("итоговая цена должна быть положительной")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSplit{}, apperror.Validation("ставка комиссии должна быть в диапазоне [0, 1)")
	}

	fee := total.Mul(rate).Round(MoneyScale)
	return FeeSplit{
		SellerAmount: total.Sub(fee),
		PlatformFee:  fee,
	}, nil
}

// Balanced проверяет инвариант settlement: seller_amount + platform_fee == total.
func (f FeeSplit) Balanced(total decimal.Decimal) bool {
	return f.SellerAmount.Add(f.PlatformFee).Equal(total) &&
		!f.SellerAmount.IsNegative() && !f.PlatformFee.IsNegative()
}
