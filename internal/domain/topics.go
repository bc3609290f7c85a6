package domain

// Bus topics, per spec §6.1.
const (
	TopicCmdLotSearch    = "copart_cmd_lot_search"
	TopicCmdLotImages    = "copart_cmd_lot_images"
	TopicCmdAuction      = "copart_cmd_auction"
	TopicCmdLoginRefresh = "copart_cmd_login_refresh"

	TopicRespLotSearch    = "copart_response_lot_search"
	TopicRespLotImages    = "copart_response_lot_images"
	TopicRespSyncedImages = "copart_response_synced_images"
)

// CommandTopics lists every topic the bus bridge's inbound adapter
// subscribes to, in the order the pool should see them.
var CommandTopics = []string{
	TopicCmdLotSearch,
	TopicCmdLotImages,
	TopicCmdAuction,
	TopicCmdLoginRefresh,
}
