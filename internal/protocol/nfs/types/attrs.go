package types

// TimeVal is an NFSv3 timestamp (nfstime3): seconds and nanoseconds since
// the Unix epoch, each 32 bits.
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// FileAttr is the full NFSv3 attribute set (fattr3, RFC 1813 Section 2.6).
type FileAttr struct {
	Type   FileType
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   uint64 // specdata3 major/minor packed big-endian
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// WccAttr is the pre-operation attribute subset used for weak cache
// consistency (wcc_attr).
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// WccData pairs optional pre- and post-operation attributes so clients can
// detect concurrent modification (wcc_data).
type WccData struct {
	Before *WccAttr
	After  *FileAttr
}

// SetTimeHow selects how SETATTR updates a timestamp (time_how).
type SetTimeHow uint32

const (
	// DontChange leaves the timestamp untouched.
	DontChange SetTimeHow = 0
	// SetToServerTime stamps with the server's clock.
	SetToServerTime SetTimeHow = 1
	// SetToClientTime stamps with the client-supplied value.
	SetToClientTime SetTimeHow = 2
)

// SetTime is a SETATTR timestamp update: the policy plus the client value
// when the policy is SetToClientTime.
type SetTime struct {
	How  SetTimeHow
	Time TimeVal
}

// SetAttr carries the optional new attribute values of a SETATTR call
// (sattr3). Nil pointers mean "do not change".
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime SetTime
	Mtime SetTime
}

// SattrGuard is the optional ctime guard of a SETATTR call (sattrguard3).
// When present, the server must reject the call with NFS3ERR_NOT_SYNC
// unless the object's current ctime matches.
type SattrGuard struct {
	Ctime *TimeVal
}
