package auth

// permissions are strings like "file:upload", "entity:read", "admin:*"
const (
	PermFileUpload  = "file:upload"
	PermFileRead    = "file:read"
	PermFileDelete  = "file:delete"
	PermEntityRead  = "entity:read"
	PermEntityWrite = "entity:write"
	PermJobReadOwn  = "job:read_own"
	PermJobReadAll  = "job:read_all"
	PermAdminAll    = "admin:*"
)

var roleToPerms = map[string][]string{
	"technician": {PermFileUpload, PermFileRead, PermEntityRead, PermJobReadOwn},
	"manager":    {PermFileUpload, PermFileRead, PermFileDelete, PermEntityRead, PermEntityWrite, PermJobReadOwn, PermJobReadAll},
	"admin":      {PermFileUpload, PermFileRead, PermFileDelete, PermEntityRead, PermEntityWrite, PermJobReadOwn, PermJobReadAll, PermAdminAll},
}

func PermsForRoles(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, 8)
	for _, r := range roles {
		if perms, ok := roleToPerms[r]; ok {
			for _, p := range perms {
				out[p] = struct{}{}
			}
		}
	}
	return out
}
