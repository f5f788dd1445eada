// Package secrets builds the privacy-preserving health fingerprint and the
// password-based AES-256-GCM envelope that protects it in transit.
package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// HealthMetrics holds ratio-only health figures. No absolute monetary value
// belongs here; nil means "not available".
type HealthMetrics struct {
	DebtToAssetRatio    *float64 `json:"debtToAssetRatio"`
	EmergencyFundMonths *float64 `json:"emergencyFundMonths"`
	SavingsRate         *float64 `json:"savingsRate"`
	LiquidityRatio      *float64 `json:"liquidityRatio"`
	SpendingHealthScore *float64 `json:"spendingHealthScore"`
}

// canonicalMetrics fixes the allow-listed keys and their alphabetical order.
type canonicalMetrics struct {
	DebtToAssetRatio    *json.Number `json:"debtToAssetRatio"`
	EmergencyFundMonths *json.Number `json:"emergencyFundMonths"`
	LiquidityRatio      *json.Number `json:"liquidityRatio"`
	SavingsRate         *json.Number `json:"savingsRate"`
	SpendingHealthScore *json.Number `json:"spendingHealthScore"`
}

// FingerprintPrecision is the number of decimal places kept per metric.
const FingerprintPrecision = 4

// canonicalNumber rounds the exact binary value of v half away from zero and
// prints the result in shortest form, so 0.00015 (stored as 0.000149999...)
// becomes 0.0001.
func canonicalNumber(v *float64) *json.Number {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	exact := decimal.RequireFromString(new(big.Float).SetFloat64(*v).Text('f', exactDigits))
	n := json.Number(exact.Round(FingerprintPrecision).String())
	return &n
}

// exactDigits covers every fractional digit a float64 can carry.
const exactDigits = 1074

// GenerateFingerprint returns the canonical JSON of m: exactly the five
// allow-listed keys in alphabetical order, each rounded to four decimal
// places, null when absent or not finite.
func GenerateFingerprint(m HealthMetrics) string {
	c := canonicalMetrics{
		DebtToAssetRatio:    canonicalNumber(m.DebtToAssetRatio),
		EmergencyFundMonths: canonicalNumber(m.EmergencyFundMonths),
		LiquidityRatio:      canonicalNumber(m.LiquidityRatio),
		SavingsRate:         canonicalNumber(m.SavingsRate),
		SpendingHealthScore: canonicalNumber(m.SpendingHealthScore),
	}
	b, err := json.Marshal(c)
	if err != nil {
		// json.Number values come from decimal.String and are always valid.
		panic(fmt.Sprintf("secrets: marshal fingerprint: %v", err))
	}
	return string(b)
}

// FingerprintJSON fingerprints an arbitrary JSON object. Only the exact-case
// allow-listed keys are read; everything else, including case variants such
// as "SAVINGSRATE", is dropped.
func FingerprintJSON(raw []byte) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("decode metrics: %w", err)
	}
	var m HealthMetrics
	for key, dst := range map[string]**float64{
		"debtToAssetRatio":    &m.DebtToAssetRatio,
		"emergencyFundMonths": &m.EmergencyFundMonths,
		"liquidityRatio":      &m.LiquidityRatio,
		"savingsRate":         &m.SavingsRate,
		"spendingHealthScore": &m.SpendingHealthScore,
	} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return "", fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return GenerateFingerprint(m), nil
}

// ParseFingerprint decodes a canonical fingerprint back into metrics.
func ParseFingerprint(fingerprint string) (HealthMetrics, error) {
	var m HealthMetrics
	if err := json.Unmarshal([]byte(fingerprint), &m); err != nil {
		return m, fmt.Errorf("decode fingerprint: %w", err)
	}
	return m, nil
}

// HashFingerprint returns the lowercase hex SHA-256 digest of fingerprint.
func HashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
