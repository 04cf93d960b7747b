package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Nick            string `json:"nick"`
	Secret          string `json:"secret,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        string      `json:"player_id"`
	Player          any         `json:"player"`
	OfflineGains    *Gains      `json:"offline_gains,omitempty"`
	WorldParams     WorldParams `json:"world_params"`
}

type Gains struct {
	Seconds int `json:"seconds"`
	Rum     int `json:"rum"`
	Wood    int `json:"wood"`
}

type WorldParams struct {
	MapWidth        float64 `json:"map_width"`
	MapHeight       float64 `json:"map_height"`
	EconomyMs       int     `json:"economy_ms"`
	BroadcastMs     int     `json:"broadcast_ms"`
	BaseCapacity    int     `json:"base_capacity"`
	PvPSpeed        float64 `json:"pvp_speed"`
	CostMultiplier  float64 `json:"cost_multiplier"`
	ArchipelagoSlot int     `json:"archipelago_slots"`
}

// Command names carried in CommandMsg.Cmd.
const (
	CmdUpgradeTavern      = "upgrade_tavern"
	CmdUpgradeDock        = "upgrade_dock"
	CmdUpgradeCannon      = "upgrade_cannon"
	CmdUpgradeIsland      = "upgrade_island"
	CmdRaid               = "raid"
	CmdHarvestArchipelago = "harvest_archipelago"
	CmdHarvestResource    = "harvest_resource"
	CmdCapture            = "capture"
	CmdInterceptCapture   = "intercept_capture"
	CmdInterceptCaravan   = "intercept_caravan"
	CmdAttack             = "attack"
	CmdBuyShip            = "buy_ship"
	CmdBuyShield          = "buy_shield"
	CmdChooseDefense      = "choose_defense"
	CmdCollectDebris      = "collect_debris"
)

// CMD (client -> server). Arguments are flat and optional; which ones are
// required depends on Cmd and is enforced by command.schema.json.
type CommandMsg struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq"`
	Cmd       string `json:"cmd"`
	Index     *int   `json:"index,omitempty"`
	NodeID    int    `json:"node_id,omitempty"`
	PointID   int    `json:"point_id,omitempty"`
	CaravanID int    `json:"caravan_id,omitempty"`
	Target    string `json:"target,omitempty"`
	Ships     int    `json:"ships,omitempty"`
	MissionID string `json:"mission_id,omitempty"`
	Defense   string `json:"defense,omitempty"`
}

// ACK (server -> client), one per CMD.
type AckMsg struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func Reject(seq int64, code, msg string) AckMsg {
	return AckMsg{Type: TypeAck, Seq: seq, Code: code, Msg: msg}
}

func Accept(seq int64, data any) AckMsg {
	return AckMsg{Type: TypeAck, Seq: seq, OK: true, Data: data}
}

// Event names carried in EventMsg.Event.
const (
	EventState              = "state"
	EventRaidsUpdate        = "raidsUpdate"
	EventPvPMissions        = "pvpMissions"
	EventRaidResult         = "raidResult"
	EventArchiResult        = "archiResult"
	EventResourceRaidResult = "resourceRaidResult"
	EventCaptureResult      = "captureResult"
	EventCaptureContested   = "captureContested"
	EventCaravanResult      = "caravanResult"
	EventCaravanContested   = "caravanContested"
	EventAttackResult       = "attackResult"
	EventAttacked           = "attacked"
	EventIncomingAttack     = "incomingAttack"
	EventWiped              = "wiped"
	EventChat               = "chat"
)

// EVENT (server -> client)
type EventMsg struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func NewEvent(event string, data any) EventMsg {
	return EventMsg{Type: TypeEvent, Event: event, Data: data}
}
