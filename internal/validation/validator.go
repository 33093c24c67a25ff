// Package validation gates valuation inputs and checks computed outputs.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"FairValue/internal/model"
)

// Failure codes.
const (
	CodeInputRequired             = "input_required"
	CodeTickerRequired            = "ticker_required"
	CodeDiscountRateRequired      = "discount_rate_required"
	CodeGrowthRateRequired        = "growth_rate_required"
	CodeTerminalRateRequired      = "terminal_growth_rate_required"
	CodeDiscountRateOutOfRange    = "discount_rate_out_of_range"
	CodeGrowthRateUnrealistic     = "growth_rate_unrealistic"
	CodeGrowthRateBelowFloor      = "growth_rate_below_floor"
	CodeTerminalNotBelowDiscount  = "terminal_not_below_discount"
	CodeProjectionYearsOutOfRange = "projection_years_out_of_range"
	CodePrecisionExceeded         = "precision_exceeded"
	CodeScaleExceeded             = "scale_exceeded"

	CodeOutputRequired       = "output_required"
	CodeFairValueRequired    = "fair_value_required"
	CodeFairValueNotPositive = "fair_value_not_positive"
	CodePriceNotPositive     = "current_price_not_positive"
	CodeVerdictRequired      = "verdict_required"
	CodeVerdictInvalid       = "verdict_invalid"
)

const (
	MinProjectionYears = 1
	MaxProjectionYears = 20
)

var (
	maxDiscount = decimal.NewFromInt(100)
	maxGrowth   = decimal.NewFromInt(1000)
	minGrowth   = decimal.NewFromInt(-100)
)

// Validator checks inputs before any collaborator is called.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom verdict tag registered. It panics
// if the tag cannot be registered.
func New() *Validator {
	v, err := newValidator(isVerdict)
	if err != nil {
		panic(err)
	}
	return v
}

func newValidator(verdict validator.Func) (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("verdict", verdict); err != nil {
		return nil, fmt.Errorf("register verdict validation: %w", err)
	}
	return &Validator{v: v}, nil
}

func isVerdict(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	for _, v := range model.Verdicts {
		if string(v) == s {
			return true
		}
	}
	return false
}

// Validate checks in against every input rule and returns the first failure
// as a *model.Error of kind validation.
func (val *Validator) Validate(in *model.DCFInput) error {
	if in == nil {
		return model.Validation(CodeInputRequired, "DCF input is required")
	}
	if err := val.v.Var(strings.TrimSpace(in.Ticker), "required"); err != nil {
		return model.Validation(CodeTickerRequired, "Ticker symbol is required")
	}

	if !in.DiscountRate.Valid {
		return model.Validation(CodeDiscountRateRequired, "Discount rate is required")
	}
	if !in.GrowthRate.Valid {
		return model.Validation(CodeGrowthRateRequired, "Growth rate is required")
	}
	if !in.TerminalGrowthRate.Valid {
		return model.Validation(CodeTerminalRateRequired, "Terminal growth rate is required")
	}

	discount := in.DiscountRate.Decimal
	growth := in.GrowthRate.Decimal
	terminal := in.TerminalGrowthRate.Decimal

	if discount.Sign() <= 0 || discount.GreaterThan(maxDiscount) {
		return model.Validation(CodeDiscountRateOutOfRange, "Discount rate must be greater than 0%% and at most 100%%")
	}
	if growth.Abs().GreaterThan(maxGrowth) {
		return model.Validation(CodeGrowthRateUnrealistic, "Growth rate too high. Please input a realistic value.")
	}
	if growth.LessThan(minGrowth) {
		return model.Validation(CodeGrowthRateBelowFloor, "Growth rate cannot be less than -100%%")
	}
	if terminal.GreaterThanOrEqual(discount) {
		return model.Validation(CodeTerminalNotBelowDiscount, "Terminal growth rate must be less than discount rate")
	}

	years := in.WithDefaults().ProjectionYears
	if years < MinProjectionYears || years > MaxProjectionYears {
		return model.Validation(CodeProjectionYearsOutOfRange, "Projection years must be between %d and %d", MinProjectionYears, MaxProjectionYears)
	}

	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"discount rate", discount},
		{"growth rate", growth},
		{"terminal growth rate", terminal},
	} {
		if err := CheckDigits(f.name, f.value, RateDigits); err != nil {
			return err
		}
	}
	return nil
}

type outputFields struct {
	Ticker   string `validate:"required"`
	HasPrice bool
	Verdict  string `validate:"required_if=HasPrice true,verdict"`
}

// ValidateOutput checks a computed output before it is returned or stored.
func (val *Validator) ValidateOutput(out *model.DCFOutput) error {
	if out == nil {
		return model.Validation(CodeOutputRequired, "DCF output is required")
	}

	fields := outputFields{
		Ticker:   strings.TrimSpace(out.Ticker),
		HasPrice: out.CurrentPrice.Sign() > 0,
		Verdict:  string(out.Verdict),
	}
	if err := val.v.Struct(fields); err != nil {
		return outputFieldError(err)
	}

	if out.FairValuePerShare.IsZero() {
		return model.Validation(CodeFairValueRequired, "Fair value per share is required")
	}
	if out.FairValuePerShare.Sign() < 0 {
		return model.Validation(CodeFairValueNotPositive, "Fair value per share must be positive")
	}
	if out.CurrentPrice.Sign() < 0 {
		return model.Validation(CodePriceNotPositive, "Current price must be positive")
	}

	if err := CheckDigits("fair value per share", out.FairValuePerShare, PerShareDigits); err != nil {
		return err
	}
	if err := CheckDigits("current price", out.CurrentPrice, PerShareDigits); err != nil {
		return err
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"terminal value", out.TerminalValue},
		{"present value of terminal value", out.PresentValueOfTerminalValue},
		{"present value of cash flows", out.PresentValueOfCashFlows},
		{"enterprise value", out.EnterpriseValue},
		{"equity value", out.EquityValue},
	} {
		if err := CheckDigits(f.name, f.value, AggregateDigits); err != nil {
			return err
		}
	}
	return nil
}

func outputFieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.Validation(CodeOutputRequired, "invalid DCF output: %v", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Ticker":
		return model.Validation(CodeTickerRequired, "Ticker symbol is required")
	case "Verdict":
		if fe.Tag() == "verdict" {
			return model.Validation(CodeVerdictInvalid, "Valuation status %q is not recognized", fe.Value())
		}
		return model.Validation(CodeVerdictRequired, "Valuation status is required")
	}
	return model.Validation(CodeOutputRequired, "invalid DCF output field %s", fe.Field())
}
