package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamdesk/apperr"
	"teamdesk/config"
	"teamdesk/models"
	"teamdesk/utils"
)

func TestAuthorizeDeviceStream(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	_, db := newTestApp(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	eng, err := models.CreateTeam(db, alice, "Eng", "")
	require.NoError(t, err)
	_, err = models.AddMember(db, eng, bob)
	require.NoError(t, err)

	aliceToken, _, err := utils.GenerateJWTToken(alice)
	require.NoError(t, err)
	bobToken, _, err := utils.GenerateJWTToken(bob)
	require.NoError(t, err)
	carolToken, _, err := utils.GenerateJWTToken(carol)
	require.NoError(t, err)

	team, err := authorizeDeviceStream(db, bobToken, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, eng.ID, team.ID)

	// Garbage tokens and outsiders are rejected before any data flows.
	_, err = authorizeDeviceStream(db, "not-a-token", eng.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
	_, err = authorizeDeviceStream(db, carolToken, eng.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	// An unknown team surfaces as NotFound, not as a denied stream.
	_, err = authorizeDeviceStream(db, bobToken, 9999)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	// The main-team creator may watch a group's stream without holding a
	// membership row on the group.
	backend, err := models.CreateGroup(db, eng, bob, "Backend", "")
	require.NoError(t, err)
	_, err = authorizeDeviceStream(db, aliceToken, backend.ID)
	require.NoError(t, err)
	_, err = authorizeDeviceStream(db, carolToken, backend.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}
