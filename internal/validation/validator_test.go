package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FairValue/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validInput() *model.DCFInput {
	return model.NewDCFInput("AAPL", dec("10"), dec("5"), dec("3"), 5)
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var e *model.Error
	require.True(t, errors.As(err, &e), "expected *model.Error, got %v", err)
	assert.True(t, errors.Is(err, model.ErrValidation))
	return e.Code
}

func TestValidate_Rules(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		mutate func(in *model.DCFInput)
		code   string
	}{
		{"blank ticker", func(in *model.DCFInput) { in.Ticker = "   " }, CodeTickerRequired},
		{"missing discount", func(in *model.DCFInput) { in.DiscountRate = decimal.NullDecimal{} }, CodeDiscountRateRequired},
		{"missing growth", func(in *model.DCFInput) { in.GrowthRate = decimal.NullDecimal{} }, CodeGrowthRateRequired},
		{"missing terminal", func(in *model.DCFInput) { in.TerminalGrowthRate = decimal.NullDecimal{} }, CodeTerminalRateRequired},
		{"zero discount", func(in *model.DCFInput) { in.DiscountRate = decimal.NewNullDecimal(decimal.Zero) }, CodeDiscountRateOutOfRange},
		{"discount above 100", func(in *model.DCFInput) { in.DiscountRate = decimal.NewNullDecimal(dec("100.5")) }, CodeDiscountRateOutOfRange},
		{"growth above ceiling", func(in *model.DCFInput) { in.GrowthRate = decimal.NewNullDecimal(dec("1000.01")) }, CodeGrowthRateUnrealistic},
		{"growth below -1000", func(in *model.DCFInput) { in.GrowthRate = decimal.NewNullDecimal(dec("-1500")) }, CodeGrowthRateUnrealistic},
		{"growth below floor", func(in *model.DCFInput) { in.GrowthRate = decimal.NewNullDecimal(dec("-100.5")) }, CodeGrowthRateBelowFloor},
		{"terminal equals discount", func(in *model.DCFInput) { in.TerminalGrowthRate = decimal.NewNullDecimal(dec("10")) }, CodeTerminalNotBelowDiscount},
		{"terminal above discount", func(in *model.DCFInput) { in.TerminalGrowthRate = decimal.NewNullDecimal(dec("12")) }, CodeTerminalNotBelowDiscount},
		{"years above 20", func(in *model.DCFInput) { in.ProjectionYears = 21 }, CodeProjectionYearsOutOfRange},
		{"negative years", func(in *model.DCFInput) { in.ProjectionYears = -1 }, CodeProjectionYearsOutOfRange},
		{"seven fractional digits", func(in *model.DCFInput) { in.GrowthRate = decimal.NewNullDecimal(dec("5.1234567")) }, CodeScaleExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			err := v.Validate(in)
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(t, err))
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(validInput()))

	in := validInput()
	in.ProjectionYears = 0
	assert.NoError(t, v.Validate(in), "zero years falls back to the default horizon")

	in = validInput()
	in.GrowthRate = decimal.NewNullDecimal(dec("5.123456"))
	assert.NoError(t, v.Validate(in))

	in = validInput()
	in.DiscountRate = decimal.NewNullDecimal(dec("10.1000000"))
	assert.NoError(t, v.Validate(in), "trailing zeros do not count toward scale")

	in = validInput()
	in.GrowthRate = decimal.NewNullDecimal(dec("-100"))
	in.TerminalGrowthRate = decimal.NewNullDecimal(dec("-2"))
	assert.NoError(t, v.Validate(in))
}

func TestValidate_NilAndFirstFailureWins(t *testing.T) {
	v := New()
	assert.Equal(t, CodeInputRequired, codeOf(t, v.Validate(nil)))

	in := &model.DCFInput{}
	assert.Equal(t, CodeTickerRequired, codeOf(t, v.Validate(in)))

	in.Ticker = "MSFT"
	assert.Equal(t, CodeDiscountRateRequired, codeOf(t, v.Validate(in)))
}

func TestDigits(t *testing.T) {
	tests := []struct {
		in       string
		integer  int
		fraction int
	}{
		{"0", 1, 0},
		{"10.1000000", 2, 1},
		{"0.001", 0, 3},
		{"1000", 4, 0},
		{"-123.456", 3, 3},
		{"12345678901.5", 11, 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			i, f := Digits(dec(tt.in))
			assert.Equal(t, tt.integer, i)
			assert.Equal(t, tt.fraction, f)
		})
	}
}

func TestCheckDigits(t *testing.T) {
	assert.NoError(t, CheckDigits("rate", dec("1.123456"), RateDigits))

	err := CheckDigits("rate", dec("1.1234567"), RateDigits)
	assert.Equal(t, CodeScaleExceeded, codeOf(t, err))
	assert.Contains(t, err.Error(), "rate")

	err = CheckDigits("rate", dec("12345678901"), RateDigits)
	assert.Equal(t, CodePrecisionExceeded, codeOf(t, err))

	assert.NoError(t, CheckDigits("equity value", dec("1234567890123456789012345.12"), AggregateDigits))
	err = CheckDigits("equity value", dec("16018757.257"), AggregateDigits)
	assert.Equal(t, CodeScaleExceeded, codeOf(t, err))
}

func validOutput() *model.DCFOutput {
	return &model.DCFOutput{
		Ticker:            "AAPL",
		FairValuePerShare: dec("160.187573"),
		CurrentPrice:      dec("150"),
		Verdict:           model.VerdictUndervalued,
		EnterpriseValue:   dec("16018757.26"),
		EquityValue:       dec("16018757.26"),
	}
}

func TestNew_VerdictRegistration(t *testing.T) {
	assert.NotPanics(t, func() { New() })

	_, err := newValidator(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register verdict validation")
}

func TestValidateOutput(t *testing.T) {
	v := New()
	require.NoError(t, v.ValidateOutput(validOutput()))

	tests := []struct {
		name   string
		mutate func(o *model.DCFOutput)
		code   string
	}{
		{"blank ticker", func(o *model.DCFOutput) { o.Ticker = "" }, CodeTickerRequired},
		{"unknown verdict", func(o *model.DCFOutput) { o.Verdict = "Cheap" }, CodeVerdictInvalid},
		{"missing verdict with price", func(o *model.DCFOutput) { o.Verdict = "" }, CodeVerdictRequired},
		{"zero fair value", func(o *model.DCFOutput) { o.FairValuePerShare = decimal.Zero }, CodeFairValueRequired},
		{"negative fair value", func(o *model.DCFOutput) { o.FairValuePerShare = dec("-1") }, CodeFairValueNotPositive},
		{"negative price", func(o *model.DCFOutput) { o.CurrentPrice = dec("-1"); o.Verdict = "" }, CodePriceNotPositive},
		{"aggregate scale", func(o *model.DCFOutput) { o.EquityValue = dec("1.123") }, CodeScaleExceeded},
		{"per-share scale", func(o *model.DCFOutput) { o.FairValuePerShare = dec("1.1234567") }, CodeScaleExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOutput()
			tt.mutate(o)
			assert.Equal(t, tt.code, codeOf(t, v.ValidateOutput(o)))
		})
	}

	noPrice := validOutput()
	noPrice.CurrentPrice = decimal.Zero
	noPrice.Verdict = ""
	assert.NoError(t, v.ValidateOutput(noPrice), "verdict is optional without a price")
	assert.Equal(t, CodeOutputRequired, codeOf(t, v.ValidateOutput(nil)))
}

func TestParameterWarning(t *testing.T) {
	assert.Empty(t, ParameterWarning(validInput()))
	assert.Empty(t, ParameterWarning(nil))

	in := validInput()
	in.GrowthRate = decimal.NewNullDecimal(dec("60"))
	assert.Contains(t, ParameterWarning(in), "Growth rate of 60%")

	in = validInput()
	in.DiscountRate = decimal.NewNullDecimal(dec("25"))
	assert.Contains(t, ParameterWarning(in), "Discount rate of 25%")

	in = validInput()
	in.DiscountRate = decimal.NewNullDecimal(dec("6"))
	in.TerminalGrowthRate = decimal.NewNullDecimal(dec("5"))
	assert.Contains(t, ParameterWarning(in), "Discount rate", "discount is checked before terminal growth")

	in = validInput()
	in.TerminalGrowthRate = decimal.NewNullDecimal(dec("4.5"))
	assert.Contains(t, ParameterWarning(in), "Terminal growth rate of 4.5%")
}

func TestReasonablenessWarning(t *testing.T) {
	o := validOutput()
	assert.Empty(t, ReasonablenessWarning(o))

	o.FairValuePerShare = dec("12000")
	o.CurrentPrice = dec("11000")
	assert.Contains(t, ReasonablenessWarning(o), "unusually high")

	o = validOutput()
	o.FairValuePerShare = dec("1501")
	assert.Contains(t, ReasonablenessWarning(o), "more than 10x")

	o = validOutput()
	o.FairValuePerShare = dec("14.99")
	assert.Contains(t, ReasonablenessWarning(o), "less than 10%")

	o.CurrentPrice = decimal.Zero
	assert.Empty(t, ReasonablenessWarning(o))
}
