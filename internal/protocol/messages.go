package protocol

import "encoding/json"

// HELLO (adapter -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AdapterName     string `json:"adapter_name"`
}

// WELCOME (server -> adapter)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	CatalogDigest   string `json:"catalog_digest"`
	CatalogVariant  string `json:"catalog_variant"`
}

// Command ops.
const (
	OpActivity       = "activity"
	OpPurchase       = "purchase"
	OpAttack         = "attack"
	OpAllianceCreate = "alliance_create"
	OpAllianceJoin   = "alliance_join"
	OpAllianceLeave  = "alliance_leave"
	OpAllianceList   = "alliance_list"
	OpSummary        = "summary"
	OpChatInfo       = "chat_info"
	OpSetOwner       = "set_owner"
	OpSetRules       = "set_rules"
	OpSetWelcome     = "set_welcome"
	OpLeaderboard    = "leaderboard"
	OpHire           = "hire"
	OpHarvest        = "harvest"
	OpQuests         = "quests"
	OpQuestClaim     = "quest_claim"
	OpCatalog        = "catalog"
)

// CMD (adapter -> server). Only the fields the op needs are read.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id"`
	ChatID          int64  `json:"chat_id"`
	PlayerID        int64  `json:"player_id,omitempty"`
	Op              string `json:"op"`

	Asset    string `json:"asset,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`
	Target   int64  `json:"target,omitempty"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text,omitempty"`
	Quest    string `json:"quest,omitempty"`
	OwnerID  int64  `json:"owner_id,omitempty"`
	By       string `json:"by,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	// Timestamp is the message time in unix milliseconds for activity.
	// Zero means the server clock.
	Timestamp int64 `json:"ts,omitempty"`
}

// RESULT (server -> adapter)
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Ref             string          `json:"ref"`
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Message         string          `json:"message,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

func OKResult(ref string, data any) (ResultMsg, error) {
	r := ResultMsg{Type: TypeResult, ProtocolVersion: Version, Ref: ref, OK: true}
	if data == nil {
		return r, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ResultMsg{}, err
	}
	r.Data = b
	return r, nil
}

func ErrResult(ref, code, reason, message string) ResultMsg {
	return ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		Ref:             ref,
		Code:            code,
		Reason:          reason,
		Message:         message,
	}
}
