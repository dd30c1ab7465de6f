package settings

// Config keys. Rule lists are JSON arrays stored under a single key each.
const (
	KeyWelcomeMessage       = "welcome_msg"
	KeyVerificationQuestion = "verif_q"
	KeyVerificationAnswer   = "verif_a"
	KeyBlockThreshold       = "block_threshold"
	KeyBackupGroupID        = "backup_group_id"
	KeyAuthorizedAdmins     = "authorized_admins"
	KeyAutoReplyRules       = "keyword_responses"
	KeyBlockKeywords        = "block_keywords"

	KeyProfileLogThreadID = "user_profile_log_topic_id"
	KeyBlockLogThreadID   = "user_block_log_topic_id"

	// Content filter toggles; "media" kept its historical image key.
	KeyEnableUserForward    = "enable_user_forwarding"
	KeyEnableGroupForward   = "enable_group_forwarding"
	KeyEnableChannelForward = "enable_channel_forwarding"
	KeyEnableAudioForward   = "enable_audio_forwarding"
	KeyEnableStickerForward = "enable_sticker_forwarding"
	KeyEnableMediaForward   = "enable_image_forwarding"
	KeyEnableLinkForward    = "enable_link_forwarding"
	KeyEnableTextForward    = "enable_text_forwarding"
)

// Built-in defaults, used when neither the store nor the environment has a
// value.
const (
	DefaultWelcomeMessage       = "Welcome! Please complete the verification check before chatting."
	DefaultVerificationQuestion = "Question: 1+1=?\n\nHint: the expected answer is configured by the operator."
	DefaultVerificationAnswer   = "3"
	DefaultBlockThreshold       = 5
)
