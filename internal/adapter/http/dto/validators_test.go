package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneIdentityPattern(t *testing.T) {
	valid := []string{
		"+84901234567",
		"+123456789",
		"+1234567890123456",
	}
	for _, s := range valid {
		assert.True(t, phoneIdentityRe.MatchString(s), s)
	}

	invalid := []string{
		"",
		"84901234567",        // missing plus
		"+8490123",           // too short
		"+12345678901234567", // too long
		"+84 901 234 567",    // not normalized
		"+84a01234567",
	}
	for _, s := range invalid {
		assert.False(t, phoneIdentityRe.MatchString(s), s)
	}
}

func TestEthAddressPattern(t *testing.T) {
	assert.True(t, ethAddressRe.MatchString("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.True(t, ethAddressRe.MatchString("0xde709f2102306220921060314715629080e2fb77"))

	invalid := []string{
		"",
		"52908400098527886E0F7030069857D2E4169EE7",
		"0x529084000985278",
		"0xZZ908400098527886E0F7030069857D2E4169EE7",
	}
	for _, s := range invalid {
		assert.False(t, ethAddressRe.MatchString(s), s)
	}
}

func TestSanitizeStruct(t *testing.T) {
	org := "  <b>Acme</b>  "
	req := RegisterRequest{
		Identity:     " +84901234567 ",
		DisplayName:  "<script>alert(1)</script>",
		Organization: org,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "+84901234567", req.Identity)
	assert.NotContains(t, req.DisplayName, "<script>")
	assert.Equal(t, "&lt;b&gt;Acme&lt;/b&gt;", req.Organization)
}

func TestSanitizeStruct_NonPointerIsNoop(t *testing.T) {
	req := LoginRequest{Identity: "  +84901234567  ", Role: "investor"}
	SanitizeStruct(req)
	assert.Equal(t, "  +84901234567  ", req.Identity)
}
