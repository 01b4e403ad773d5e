// Package slots defines the information a voice lead must collect: the slot
// keys, their capture order, retry ceilings, validation rules and sentinels.
package slots

// Key names one piece of information collected during a call.
type Key string

const (
	Name           Key = "name"
	Phone          Key = "phone"
	PhoneConfirmed Key = "phoneConfirmed"
	Email          Key = "email"
	Zip            Key = "zip"
	ZipConfirmed   Key = "zipConfirmed"
	PartRequested  Key = "partRequested"
	Make           Key = "make"
	Model          Key = "model"
	Year           Key = "year"
	Trim           Key = "trim"
)

// Class describes what happens when a slot keeps failing validation.
type Class int

const (
	// ClassOptional slots are accepted verbatim and never counted.
	ClassOptional Class = iota
	// ClassCritical slots escalate to a human-transfer offer at the ceiling.
	ClassCritical
	// ClassDefaulted slots fall back to their sentinel at the ceiling.
	ClassDefaulted
	// ClassPersistent slots re-prompt indefinitely.
	ClassPersistent
)

// Placeholder values written when a caller cannot or will not supply a field.
const (
	ZipUnknown   = "00000"
	Unknown      = "Unknown"
	EmailDefault = "voice@firstused.com"
	NameDefault  = "Voice Lead"
)

// Definition is the schema entry for a single slot.
type Definition struct {
	Key          Key
	Prompt       string
	Class        Class
	RetryCeiling int
	Sentinel     string
}

// Exhausts reports whether count consecutive failures reach the ceiling.
func (s Definition) Exhausts(count int) bool {
	return s.RetryCeiling > 0 && count >= s.RetryCeiling
}

// Schema lists the collected slots in capture order. Confirmation flags are
// not prompted for directly and therefore do not appear here.
var Schema = []Definition{
	{Key: Name, Prompt: "May I have your name, please?", Class: ClassOptional, Sentinel: NameDefault},
	{Key: Phone, Prompt: "May I have your mobile number, please?", Class: ClassCritical, RetryCeiling: 3},
	{Key: Email, Prompt: "May I have your email address, please?", Class: ClassCritical, RetryCeiling: 3, Sentinel: EmailDefault},
	{Key: Zip, Prompt: "May I know your ZIP code, please?", Class: ClassDefaulted, RetryCeiling: 3, Sentinel: ZipUnknown},
	{Key: PartRequested, Prompt: "What part are you looking for?", Class: ClassCritical, RetryCeiling: 3, Sentinel: Unknown},
	{Key: Make, Prompt: "Please tell me the vehicle make, for example, Honda or Toyota.", Class: ClassPersistent, Sentinel: Unknown},
	{Key: Model, Prompt: "What is the model name?", Class: ClassPersistent, Sentinel: Unknown},
	{Key: Year, Prompt: "What is the year of manufacture?", Class: ClassDefaulted, RetryCeiling: 3, Sentinel: Unknown},
	{Key: Trim, Prompt: "Do you know the trim or variant? If not, say I don't know.", Class: ClassOptional, Sentinel: Unknown},
}

var schemaIndex = func() map[Key]Definition {
	idx := make(map[Key]Definition, len(Schema))
	for _, def := range Schema {
		idx[def.Key] = def
	}
	return idx
}()

// Lookup returns the schema entry for key.
func Lookup(key Key) (Definition, bool) {
	def, ok := schemaIndex[key]
	return def, ok
}

// AllKeys returns every slot key, including confirmation flags.
func AllKeys() []Key {
	return []Key{Name, Phone, PhoneConfirmed, Email, Zip, ZipConfirmed, PartRequested, Make, Model, Year, Trim}
}
