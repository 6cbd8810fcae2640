package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Protocol selects the RCON wire codec for a game server.
type Protocol string

const (
	ProtocolSource Protocol = "source" // Path of Titans style text RCON
	ProtocolEvrima Protocol = "evrima" // The Isle Evrima binary RCON
)

// Game identifies the log grammar and identity namespace for a server.
func (p Protocol) Game() string {
	if p == ProtocolEvrima {
		return GameEvrima
	}
	return GamePathOfTitans
}

const (
	GameEvrima       = "the_isle_evrima"
	GamePathOfTitans = "path_of_titans"
)

// LogType names one tailed remote file per source.
type LogType string

const (
	LogChat  LogType = "chat"
	LogKill  LogType = "kill"
	LogAdmin LogType = "admin"
)

type GameServer struct {
	ID              string     `json:"id"`
	GuildID         string     `json:"guild_id"`
	Name            string     `json:"name"`
	Protocol        Protocol   `json:"protocol"`
	Host            string     `json:"host"`
	Port            int        `json:"port"`
	Password        string     `json:"-"`
	IsDefault       bool       `json:"is_default"`
	IsActive        bool       `json:"is_active"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       string     `json:"created_at"`
}

func (s *GameServer) Addr() string { return s.Host }

type SftpSource struct {
	ID            string  `json:"id"`
	GuildID       string  `json:"guild_id"`
	ServerID      string  `json:"server_id,omitempty"`
	Name          string  `json:"name"`
	Game          string  `json:"game"`
	Host          string  `json:"host"`
	Port          int     `json:"port"`
	Username      string  `json:"username"`
	Password      string  `json:"-"`
	ChatLogPath   string  `json:"chat_log_path"`
	KillLogPath   string  `json:"kill_log_path"`
	AdminLogPath  string  `json:"admin_log_path"`
	AdminListPath string  `json:"admin_list_path"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     string  `json:"created_at"`
}

// LogPath returns the configured remote path for a log type, empty when the
// type is not monitored on this source.
func (s *SftpSource) LogPath(t LogType) string {
	switch t {
	case LogChat:
		return s.ChatLogPath
	case LogKill:
		return s.KillLogPath
	case LogAdmin:
		return s.AdminLogPath
	}
	return ""
}

type LogCursor struct {
	SourceID     string
	LogType      LogType
	FilePath     string
	Offset       int64
	LastLineHash string
	LastReadAt   *time.Time
}

// Challenge states. Terminal states are immutable.
const (
	ChallengePending  = "pending"
	ChallengeVerified = "verified"
	ChallengeExpired  = "expired"
	ChallengeFailed   = "failed"
)

type VerificationChallenge struct {
	ID               string    `json:"id"`
	GuildID          string    `json:"guild_id"`
	UserID           string    `json:"user_id"`
	Game             string    `json:"game"`
	Code             string    `json:"code"`
	TargetPlayerID   string    `json:"target_player_id,omitempty"`
	Attempts         int       `json:"attempts"`
	MaxAttempts      int       `json:"max_attempts"`
	State            string    `json:"state"`
	VerifiedPlayerID string    `json:"verified_player_id,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        string    `json:"created_at"`
}

type EnforcementRule struct {
	GuildID                    string `json:"guild_id"`
	AutoKickEnabled            bool   `json:"auto_kick_enabled"`
	AutoKickThreshold          int    `json:"auto_kick_threshold"`
	AutoBanEnabled             bool   `json:"auto_ban_enabled"`
	AutoBanThreshold           int    `json:"auto_ban_threshold"`
	VerificationEnabled        bool   `json:"verification_enabled"`
	VerificationTimeoutMinutes int    `json:"verification_timeout_minutes"`
}

type CommandAuditRecord struct {
	ID         int64  `json:"id"`
	GuildID    string `json:"guild_id"`
	ServerID   string `json:"server_id,omitempty"`
	Command    string `json:"command"`
	TargetID   string `json:"target_id"`
	ExecutedBy string `json:"executed_by"`
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	ExecutedAt string `json:"executed_at"`
}

type Player struct {
	GuildID    string `json:"guild_id"`
	UserID     string `json:"user_id"`
	SteamID    string `json:"steam_id,omitempty"`
	AlderonID  string `json:"alderon_id,omitempty"`
	PlayerName string `json:"player_name"`
}

// GameID returns the identity used on servers of the given game type.
func (p *Player) GameID(game string) string {
	if game == GameEvrima {
		return p.SteamID
	}
	return p.AlderonID
}

type LogChannels struct {
	GuildID   string `json:"guild_id"`
	ChatLog   string `json:"chatlog_channel_id"`
	KillFeed  string `json:"killfeed_channel_id"`
	AdminLog  string `json:"adminlog_channel_id"`
	Link      string `json:"link_channel_id"`
	Restart   string `json:"restart_channel_id"`
}

type ScheduledTask struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id"`
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	CronExpr string `json:"cron_expr"`
	Action   string `json:"action"`
	Payload  string `json:"payload"`
	Enabled  bool   `json:"enabled"`
	LastRun  string `json:"last_run,omitempty"`
}

// Store wraps the sqlite handle. All coordination between workers goes
// through it; nothing here keeps in-memory state.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func strOrEmpty(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}
