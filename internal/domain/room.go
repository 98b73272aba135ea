package domain

// RoomKind is the family of bus routing addresses.
type RoomKind string

const (
	RoomUser      RoomKind = "user"
	RoomRole      RoomKind = "role"
	RoomCommunity RoomKind = "community"
	RoomDevice    RoomKind = "device"
	RoomSession   RoomKind = "session"
	RoomArticle   RoomKind = "article"
)

// RoomTarget is one routing address. Used only for fan-out, never persisted.
type RoomTarget struct {
	Kind RoomKind `json:"kind"`
	ID   string   `json:"id"`
}

func (r RoomTarget) Key() string { return string(r.Kind) + ":" + r.ID }

func UserRoom(id string) RoomTarget      { return RoomTarget{Kind: RoomUser, ID: id} }
func RoleRoom(id string) RoomTarget      { return RoomTarget{Kind: RoomRole, ID: id} }
func CommunityRoom(id string) RoomTarget { return RoomTarget{Kind: RoomCommunity, ID: id} }
func DeviceRoom(id string) RoomTarget    { return RoomTarget{Kind: RoomDevice, ID: id} }
func SessionRoom(id string) RoomTarget   { return RoomTarget{Kind: RoomSession, ID: id} }
func ArticleRoom(id string) RoomTarget   { return RoomTarget{Kind: RoomArticle, ID: id} }
