package filedb

const (
	// metaLength is the size of the tree header at the start of an index file:
	// metaFieldCount slots of metaParamLength bytes plus a trailing '\n'.
	metaLength      = 181
	metaParamLength = 20
	metaFieldCount  = 9
)

const (
	defaultMaxElemsInNode = 51
	defaultKeySize        = 11
	defaultValSize        = 11
	defaultLinkSize       = 8
	defaultEod            = "\xffend_of_data"
	defaultEndOfNode      = "\n"
)

// maxDigits is the widest decimal rendering of an uint64.
const maxDigits = 20

const (
	ColumnTypeInt    = "int"
	ColumnTypeString = "string"
)

const (
	IndexTypeBTree = "btree"
	IndexTypeLSM   = "lsm"
)

const (
	IndexStatusReady = "ready"
	IndexStatusEmpty = ""
)
