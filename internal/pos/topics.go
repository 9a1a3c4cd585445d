package pos

const (
	TopicSaleCommitted = "pos.sale.committed"
	TopicSaleDeleted   = "pos.sale.deleted"
)

// PartitionKey keeps every message about one sale on one partition.
func PartitionKey(saleID string) []byte { return []byte(saleID) }
