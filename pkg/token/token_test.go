package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tokenStr, err := GenerateJWT("agent-7", string(RoleAgent), "console_service")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	claims, err := ParseJWT(tokenStr)
	assert.NoError(t, err)
	assert.Equal(t, "agent-7", claims.AgentID)
	assert.Equal(t, string(RoleAgent), claims.Role)
	assert.Equal(t, "console_service", claims.Issuer)
}

func TestParseJWTInvalid(t *testing.T) {
	_, err := ParseJWT("not-a-token")
	assert.Error(t, err)
}

func TestCheckJWTNotExpire(t *testing.T) {
	tokenStr, err := GenerateJWT("agent-7", string(RoleAgent), "console_service")
	assert.NoError(t, err)

	ok, err := CheckJWTNotExpire("Bearer " + tokenStr)
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = CheckJWTNotExpire(tokenStr)
	assert.Error(t, err, "missing Bearer prefix")
}
