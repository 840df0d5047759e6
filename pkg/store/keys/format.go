package keys

const (
	// notation dictionary for key formats:
	// c    = conversation
	// m    = message
	// mid  = message id index
	// typ  = typing state
	// read = read watermark
	// u    = user
	// rel  = relationship marker
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <conv_id>, <msg_id>)

	// primary storage key formats
	ConversationMetaKey = "c:%s:meta"    // c:<conv_id>:meta
	MessageKey          = "c:%s:m:%s:%s" // c:<conv_id>:m:<ts>:<seq>
	MessageIDKey        = "c:%s:mid:%s"  // c:<conv_id>:mid:<msg_id>
	TypingKey           = "c:%s:typ:%s"  // c:<conv_id>:typ:<user_id>
	ReadKey             = "c:%s:read:%s" // c:<conv_id>:read:<user_id>
	ProfileKey          = "u:%s:profile" // u:<user_id>:profile

	// relationship markers
	RelUserInConversation = "rel:u:%s:c:%s" // rel:u:<user_id>:c:<conv_id>

	// scan prefixes
	MessagePrefix = "c:%s:m:"   // all messages of a conversation
	TypingPrefix  = "c:%s:typ:" // all typing docs of a conversation
	AllTypingScan = "c:"        // sweeper scans every conversation

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth  = 20 // e.g. %020d
	SeqPadWidth = 6  // e.g. %06d
)
