package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"teamdesk/apperr"
	"teamdesk/models"
)

type fixture struct {
	db      *gorm.DB
	creator *models.User
	manager *models.User
	member  *models.User
	outside *models.User
	team    *models.Team
}

// newFixture builds a team with one user per role plus an outsider.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Team{}, &models.Membership{},
		&models.Device{}, &models.Backlog{},
		&models.Collection{}, &models.List{}, &models.Item{},
	))

	f := &fixture{db: db}
	f.creator = seedUser(t, db, "creator")
	f.manager = seedUser(t, db, "manager")
	f.member = seedUser(t, db, "member")
	f.outside = seedUser(t, db, "outside")

	f.team, err = models.CreateTeam(db, f.creator, "Eng", "")
	require.NoError(t, err)
	_, err = models.AddMember(db, f.team, f.manager)
	require.NoError(t, err)
	_, err = models.AddMember(db, f.team, f.member)
	require.NoError(t, err)
	_, err = models.SetManager(db, f.team, f.creator.ID, f.manager.ID, true)
	require.NoError(t, err)

	return f
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestRoleOf(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		user uint
		want Role
	}{
		{"creator", f.creator.ID, RoleCreator},
		{"manager", f.manager.ID, RoleManager},
		{"member", f.member.ID, RoleMember},
		{"outsider", f.outside.ID, RoleNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, err := RoleOf(f.db, tc.user, f.team.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, role)
		})
	}

	// A missing team surfaces as NotFound rather than a silent RoleNone.
	_, err := RoleOf(f.db, f.creator.ID, 9999)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestChecksByRole(t *testing.T) {
	f := newFixture(t)

	type check func(*gorm.DB, uint, TeamOwned) (bool, error)
	cases := []struct {
		name  string
		check check
		want  map[uint]bool
	}{
		{"IsCreator", IsCreator, map[uint]bool{
			f.creator.ID: true, f.manager.ID: false, f.member.ID: false, f.outside.ID: false,
		}},
		{"IsManagerOrCreator", IsManagerOrCreator, map[uint]bool{
			f.creator.ID: true, f.manager.ID: true, f.member.ID: false, f.outside.ID: false,
		}},
		{"IsMemberOrCreator", IsMemberOrCreator, map[uint]bool{
			f.creator.ID: true, f.manager.ID: true, f.member.ID: true, f.outside.ID: false,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for userID, want := range tc.want {
				got, err := tc.check(f.db, userID, f.team)
				require.NoError(t, err)
				assert.Equal(t, want, got, "user %d", userID)
			}
		})
	}
}

func TestChecksResolveOwnershipChain(t *testing.T) {
	f := newFixture(t)

	collection := models.Collection{TeamID: f.team.ID, Name: "Roadmap"}
	require.NoError(t, f.db.Create(&collection).Error)
	list := models.List{CollectionID: collection.ID, Name: "Q3"}
	require.NoError(t, f.db.Create(&list).Error)
	backlog, err := models.FindBacklogByTeam(f.db, f.team.ID)
	require.NoError(t, err)
	item := models.Item{Name: "Ship it", CreatorID: f.creator.ID, BacklogID: backlog.ID}
	require.NoError(t, f.db.Create(&item).Error)

	// All four resource kinds resolve to the same team, so the same checks
	// hold on each of them.
	for _, resource := range []TeamOwned{f.team, &collection, &list, &item} {
		ok, err := IsManagerOrCreator(f.db, f.manager.ID, resource)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = IsMemberOrCreator(f.db, f.outside.ID, resource)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestGroupCreatorOverride(t *testing.T) {
	f := newFixture(t)

	group, err := models.CreateGroup(f.db, f.team, f.manager, "Backend", "")
	require.NoError(t, err)

	// The main-team creator passes every check on the group without holding
	// a membership row on it.
	ok, err := IsCreator(f.db, f.creator.ID, group)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = IsMemberOrCreator(f.db, f.creator.ID, group)
	require.NoError(t, err)
	assert.True(t, ok)

	// The group's own creator holds creator rank inside the group only.
	ok, err = IsCreator(f.db, f.manager.ID, group)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = IsCreator(f.db, f.manager.ID, f.team)
	require.NoError(t, err)
	assert.False(t, ok)

	// Plain main-team members have no standing in the group.
	ok, err = IsMemberOrCreator(f.db, f.member.ID, group)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequireHelpers(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, RequireCreator(f.db, f.creator.ID, f.team))
	require.NoError(t, RequireManagerOrCreator(f.db, f.manager.ID, f.team))
	require.NoError(t, RequireMemberOrCreator(f.db, f.member.ID, f.team))

	err := RequireManagerOrCreator(f.db, f.member.ID, f.team)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
	err = RequireMemberOrCreator(f.db, f.outside.ID, f.team)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
	err = RequireCreator(f.db, f.manager.ID, f.team)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}
