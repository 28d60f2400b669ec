package mountctx

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/blkcore/blkmount/internal/errkind"
)

// resolveID fixes up a uid=/gid= value: pure-digit values pass through
// unchanged; "useruid"/"usergid" resolve to the running user/group;
// anything else is looked up in the OS user/group database (spec.md
// §4.7's "uid=/gid= fixup"). isGroup selects user.Lookup vs
// user.LookupGroup.
func resolveID(value string, isGroup bool, runningID int) (string, error) {
	if _, err := strconv.ParseUint(value, 10, 32); err == nil {
		return value, nil
	}
	if value == "useruid" || value == "usergid" {
		return strconv.Itoa(runningID), nil
	}

	if isGroup {
		g, err := user.LookupGroup(value)
		if err != nil {
			return "", errkind.New(errkind.Option, "mountctx.resolveID", fmt.Errorf("unknown group %q: %w", value, err))
		}
		return g.Gid, nil
	}
	u, err := user.Lookup(value)
	if err != nil {
		return "", errkind.New(errkind.Option, "mountctx.resolveID", fmt.Errorf("unknown user %q: %w", value, err))
	}
	return u.Uid, nil
}
