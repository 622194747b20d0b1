package orders

// Satu topic untuk semua event transisi; notifier memilah lewat
// event_type di envelope.
const TopicOrderEvents = "order.events"

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
