package domain

// User columns addressable by profile mutation and listing filters.
const (
	FieldUID          = "uid"
	FieldGID          = "gid"
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldCanMsg       = "can_msg"
	FieldCanSubmit    = "can_submit"
	FieldCanComment   = "can_comment"
	FieldTitle        = "title"
	FieldBio          = "bio"
	FieldWebsite      = "website"
	FieldAvatar       = "avatar"
	FieldShowEmail    = "show_email"
	FieldRegisteredIP = "registered_ip"
	FieldJoinDate     = "join_date"
	FieldLastVisit    = "last_visit"
	FieldLastActive   = "last_active"
	FieldLastIP       = "last_ip"
)

// FieldKind is the storage type of a user column.
type FieldKind int

const (
	KindText FieldKind = iota
	KindInt
	KindBool
	KindTime
)

// FieldSpec describes a user column.
type FieldSpec struct {
	Name string
	Kind FieldKind
	// MaxLen bounds text values. Zero means no bound beyond the sanitizer default.
	MaxLen int
}

var userFields = map[string]FieldSpec{
	FieldUID:          {Name: FieldUID, Kind: KindInt},
	FieldGID:          {Name: FieldGID, Kind: KindInt},
	FieldUsername:     {Name: FieldUsername, Kind: KindText, MaxLen: 32},
	FieldEmail:        {Name: FieldEmail, Kind: KindText, MaxLen: 254},
	FieldPassword:     {Name: FieldPassword, Kind: KindText, MaxLen: 72},
	FieldCanMsg:       {Name: FieldCanMsg, Kind: KindBool},
	FieldCanSubmit:    {Name: FieldCanSubmit, Kind: KindBool},
	FieldCanComment:   {Name: FieldCanComment, Kind: KindBool},
	FieldTitle:        {Name: FieldTitle, Kind: KindText, MaxLen: 64},
	FieldBio:          {Name: FieldBio, Kind: KindText, MaxLen: 2000},
	FieldWebsite:      {Name: FieldWebsite, Kind: KindText, MaxLen: 255},
	FieldAvatar:       {Name: FieldAvatar, Kind: KindText, MaxLen: 255},
	FieldShowEmail:    {Name: FieldShowEmail, Kind: KindBool},
	FieldRegisteredIP: {Name: FieldRegisteredIP, Kind: KindText},
	FieldJoinDate:     {Name: FieldJoinDate, Kind: KindTime},
	FieldLastVisit:    {Name: FieldLastVisit, Kind: KindTime},
	FieldLastActive:   {Name: FieldLastActive, Kind: KindTime},
	FieldLastIP:       {Name: FieldLastIP, Kind: KindText},
}

// LookupField returns the column description for name.
func LookupField(name string) (FieldSpec, bool) {
	spec, ok := userFields[name]
	return spec, ok
}

// FieldValue is a single column assignment in a profile mutation batch.
// Value holds the normalized Go value once the service has validated it
// (string, int64 or bool).
type FieldValue struct {
	Field string
	Value any
}

// FilterableFields are the columns accepted by exact-match listing filters.
var FilterableFields = map[string]bool{
	FieldGID:        true,
	FieldUsername:   true,
	FieldEmail:      true,
	FieldCanMsg:     true,
	FieldCanSubmit:  true,
	FieldCanComment: true,
}

// SortableFields are the columns a listing may be ordered by.
var SortableFields = map[string]bool{
	FieldUID:       true,
	FieldGID:       true,
	FieldUsername:  true,
	FieldJoinDate:  true,
	FieldLastVisit: true,
}
