package secrets

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

var sample = HealthMetrics{
	EmergencyFundMonths: f(6.5),
	SavingsRate:         f(0.25),
	DebtToAssetRatio:    f(0.1),
	LiquidityRatio:      f(0.4),
	SpendingHealthScore: f(85),
}

func objectKeys(t *testing.T, s string) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)
	var keys []string
	for dec.More() {
		k, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, k.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	return keys
}

func TestGenerateFingerprintCanonical(t *testing.T) {
	t.Parallel()

	fp := GenerateFingerprint(sample)
	require.Equal(t, `{"debtToAssetRatio":0.1,"emergencyFundMonths":6.5,"liquidityRatio":0.4,"savingsRate":0.25,"spendingHealthScore":85}`, fp)
	require.Equal(t, []string{
		"debtToAssetRatio", "emergencyFundMonths", "liquidityRatio", "savingsRate", "spendingHealthScore",
	}, objectKeys(t, fp))
}

func TestGenerateFingerprintRoundsAndNulls(t *testing.T) {
	t.Parallel()

	fp := GenerateFingerprint(HealthMetrics{
		DebtToAssetRatio: f(1.0 / 3.0),
		SavingsRate:      f(0.123456),
		LiquidityRatio:   f(math.NaN()),
	})
	require.Equal(t, `{"debtToAssetRatio":0.3333,"emergencyFundMonths":null,"liquidityRatio":null,"savingsRate":0.1235,"spendingHealthScore":null}`, fp)
	require.Equal(t, fp, GenerateFingerprint(HealthMetrics{
		DebtToAssetRatio: f(0.33333333),
		SavingsRate:      f(0.12345999),
		LiquidityRatio:   f(math.Inf(1)),
	}), "equal after rounding")
}

func TestFingerprintJSONDropsUnknownFields(t *testing.T) {
	t.Parallel()

	a := `{"savingsRate":0.25,"emergencyFundMonths":6.5,"debtToAssetRatio":0.1}`
	b := `{"debtToAssetRatio":0.1,"absoluteBalance":120000,"savingsRate":0.25,"emergencyFundMonths":6.5}`
	fa, err := FingerprintJSON([]byte(a))
	require.NoError(t, err)
	fb, err := FingerprintJSON([]byte(b))
	require.NoError(t, err)
	require.Equal(t, fa, fb)
	require.NotContains(t, fb, "absoluteBalance")
	require.NotContains(t, fb, "120000")
	require.Len(t, objectKeys(t, fb), 5)

	_, err = FingerprintJSON([]byte(`{"savingsRate":"high"}`))
	require.Error(t, err)
}

func TestFingerprintJSONIgnoresCaseVariants(t *testing.T) {
	t.Parallel()

	want, err := FingerprintJSON([]byte(`{"savingsRate":0.1}`))
	require.NoError(t, err)
	for _, in := range []string{
		`{"savingsRate":0.1,"SAVINGSRATE":999999}`,
		`{"SavingsRate":999999,"savingsRate":0.1}`,
		`{"savingsRate":0.1,"DebtToAssetRatio":0.9,"LIQUIDITYRATIO":7}`,
	} {
		got, err := FingerprintJSON([]byte(in))
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
		require.NotContains(t, got, "999999")
	}

	fp, err := FingerprintJSON([]byte(`{"savingsRate":null,"debtToAssetRatio":0.5}`))
	require.NoError(t, err)
	require.Equal(t, `{"debtToAssetRatio":0.5,"emergencyFundMonths":null,"liquidityRatio":null,"savingsRate":null,"spendingHealthScore":null}`, fp)
}

// Expected strings match Number(x.toFixed(4)) in a JavaScript engine.
func TestGenerateFingerprintRoundsExactBinaryValue(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   float64
		want string
	}{
		{0.00015, "0.0001"},
		{0.30015, "0.3001"},
		{1.00015, "1.0002"},
		{2.5e-5, "0"},
		{1.03125, "1.0313"},
		{-1.03125, "-1.0313"},
		{-0.00001, "0"},
		{120, "120"},
	} {
		fp := GenerateFingerprint(HealthMetrics{SavingsRate: f(tc.in)})
		require.Contains(t, fp, `"savingsRate":`+tc.want+`,`, "%v", tc.in)
	}
}

func TestParseFingerprint(t *testing.T) {
	t.Parallel()

	m, err := ParseFingerprint(GenerateFingerprint(HealthMetrics{SavingsRate: f(0.2), EmergencyFundMonths: f(3)}))
	require.NoError(t, err)
	require.Equal(t, 0.2, *m.SavingsRate)
	require.Equal(t, 3.0, *m.EmergencyFundMonths)
	require.Nil(t, m.DebtToAssetRatio)
}

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashFingerprint(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", GenerateFingerprint(sample), "日本語"} {
		h := HashFingerprint(in)
		require.Regexp(t, hex64, h)
		require.Equal(t, h, HashFingerprint(in))
	}
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashFingerprint(""))
	require.NotEqual(t, HashFingerprint("a"), HashFingerprint("b"))
}

const password = "CorrectHorseBatteryStaple_#1234"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	for _, pt := range []string{
		"Simple ASCII text",
		"包含中文 CJK 文字",
		"Emoji payload 🎉🔥🚀",
		"1234567890!@#$%^&*()_+",
		"",
	} {
		p, err := Encrypt(pt, password)
		require.NoError(t, err)
		got, err := Decrypt(p, password)
		require.NoError(t, err)
		require.Equal(t, pt, got)
	}
}

func TestEncryptFreshSaltAndIV(t *testing.T) {
	t.Parallel()

	p1, err := Encrypt("Consistent Message", password)
	require.NoError(t, err)
	p2, err := Encrypt("Consistent Message", password)
	require.NoError(t, err)
	require.NotEqual(t, p1.Ciphertext, p2.Ciphertext)
	require.NotEqual(t, p1.IV, p2.IV)
	require.NotEqual(t, p1.Salt, p2.Salt)

	iv, err := b64.DecodeString(p1.IV)
	require.NoError(t, err)
	require.Len(t, iv, IVSize)
	salt, err := b64.DecodeString(p1.Salt)
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)
}

func TestDecryptWrongPassword(t *testing.T) {
	t.Parallel()

	p, err := Encrypt("Top Secret Data", password)
	require.NoError(t, err)
	_, err = Decrypt(p, "Wrong_Password!")
	require.ErrorIs(t, err, ErrDecrypt)
	require.EqualError(t, err, "incorrect password or corrupted data")
}

func alter(s string, i int) string {
	c := byte('A')
	if s[i] == 'A' {
		c = 'B'
	}
	return s[:i] + string(c) + s[i+1:]
}

func TestDecryptDetectsSingleCharTampering(t *testing.T) {
	t.Parallel()

	p, err := Encrypt("tamper", password)
	require.NoError(t, err)

	for i := range p.Ciphertext {
		q := p
		q.Ciphertext = alter(p.Ciphertext, i)
		_, err := Decrypt(q, password)
		require.ErrorIs(t, err, ErrDecrypt, "ciphertext position %d", i)
	}
	for i := range p.IV {
		q := p
		q.IV = alter(p.IV, i)
		_, err := Decrypt(q, password)
		require.ErrorIs(t, err, ErrDecrypt, "iv position %d", i)
	}
	for i := range p.Salt {
		q := p
		q.Salt = alter(p.Salt, i)
		_, err := Decrypt(q, password)
		require.ErrorIs(t, err, ErrDecrypt, "salt position %d", i)
	}
}

func TestDecryptMalformed(t *testing.T) {
	t.Parallel()

	p, err := Encrypt("short", password)
	require.NoError(t, err)

	truncated := p
	truncated.Ciphertext = b64.EncodeToString([]byte("xx"))
	_, err = Decrypt(truncated, password)
	require.ErrorIs(t, err, ErrDecrypt)

	shortIV := p
	shortIV.IV = b64.EncodeToString([]byte("abc"))
	_, err = Decrypt(shortIV, password)
	require.ErrorIs(t, err, ErrDecrypt)

	garbage := p
	garbage.Salt = "not base64!"
	_, err = Decrypt(garbage, password)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	salt, err := GenerateSalt()
	require.NoError(t, err)
	k1, err := DeriveKey(password, salt)
	require.NoError(t, err)
	k2, err := DeriveKey(password, salt)
	require.NoError(t, err)

	iv := make([]byte, IVSize)
	ct := k1.seal(iv, []byte("same key"))
	pt, err := k2.open(iv, ct)
	require.NoError(t, err)
	require.Equal(t, "same key", string(pt))
}
