// Package money собирает денежную арифметику сервиса в одном месте.
//
// Все суммы хранятся как decimal.Decimal с масштабом 2. Значения, которых
// может не быть в исторических данных, приходят как decimal.NullDecimal и
// трактуются как ноль. Сравнение выполняется численно: 0 и 0.00 равны.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale — число знаков после запятой для всех денежных сумм.
const Scale int32 = 2

var hundred = decimal.NewFromInt(100)

// Of возвращает значение или ноль, если оно отсутствует.
func Of(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// Ptr возвращает значение по указателю или ноль для nil.
func Ptr(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

// Valid оборачивает сумму в заполненный NullDecimal.
func Valid(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

// Sum складывает значения, пропуская отсутствующие.
func Sum(values ...decimal.NullDecimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(Of(v))
	}
	return total
}

// Add складывает два значения с null-as-zero.
func Add(a, b decimal.NullDecimal) decimal.Decimal {
	return Of(a).Add(Of(b))
}

// Sub вычитает b из a с null-as-zero.
func Sub(a, b decimal.NullDecimal) decimal.Decimal {
	return Of(a).Sub(Of(b))
}

// MulInt умножает цену на количество и округляет результат.
func MulInt(amount decimal.Decimal, qty int) decimal.Decimal {
	return Round(amount.Mul(decimal.NewFromInt(int64(qty))))
}

// Percent возвращает pct процентов от amount, округлённые до копеек.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// Div делит a на b с масштабом 2 и округлением half-up.
// Деление на ноль даёт ноль.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, Scale)
}

// Round округляет до масштаба 2, половина округляется от нуля.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Scale)
}

// IsZero сообщает, равно ли значение нулю; отсутствующее значение считается нулём.
func IsZero(v decimal.NullDecimal) bool {
	return Of(v).IsZero()
}

// Equal сравнивает суммы численно.
func Equal(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

// NonNegative отсекает отрицательные значения до нуля.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Min возвращает меньшее из двух значений.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max возвращает большее из двух значений.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// GrowthPercent считает прирост current относительно previous в процентах.
// При нулевой базе прирост не определён (Valid=false), если только
// текущее значение тоже не ноль.
func GrowthPercent(current, previous decimal.Decimal) decimal.NullDecimal {
	if previous.IsZero() {
		if current.IsZero() {
			return Valid(decimal.Zero)
		}
		return decimal.NullDecimal{}
	}
	return Valid(Div(current.Sub(previous).Mul(hundred), previous))
}

// Ratio возвращает part/whole в процентах с масштабом 2.
func Ratio(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return Div(decimal.NewFromInt(int64(part)).Mul(hundred), decimal.NewFromInt(int64(whole)))
}
