package types

// NFS ACCESS permission bits (RFC 1813 Section 3.3.4).
const (
	AccessRead    uint32 = 0x0001 // Read file data or list directory
	AccessLookup  uint32 = 0x0002 // Look up names in directory
	AccessModify  uint32 = 0x0004 // Modify file data or directory entries
	AccessExtend  uint32 = 0x0008 // Extend file or add directory entries
	AccessDelete  uint32 = 0x0010 // Delete file or directory entry
	AccessExecute uint32 = 0x0020 // Execute file or search directory
)

// AccessAllReadOnly is the permission set a read-only server grants.
const AccessAllReadOnly = AccessRead | AccessLookup | AccessExecute

// AccessAll is every defined permission bit.
const AccessAll = AccessAllReadOnly | AccessModify | AccessExtend | AccessDelete

// FSINFO properties bits (RFC 1813 Section 3.3.19).
const (
	FSFLink        uint32 = 0x0001 // Supports hard links
	FSFSymlink     uint32 = 0x0002 // Supports symbolic links
	FSFHomogeneous uint32 = 0x0008 // PATHCONF is valid for the whole filesystem
	FSFCanSetTime  uint32 = 0x0010 // SETATTR can set time on server
)

// FSFDefault is the properties mask a full-featured filesystem advertises.
const FSFDefault = FSFLink | FSFSymlink | FSFHomogeneous | FSFCanSetTime
