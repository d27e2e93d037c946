package auth

// Permission names a capability a route group needs. Handlers never compare
// role strings; roles map to permissions here and nowhere else.
type Permission string

const (
	PermCatalogWrite Permission = "catalog:write"
	PermStockWrite   Permission = "stock:write"
	PermOrdersManage Permission = "orders:manage"
	PermUsersRead    Permission = "users:read"
)

var rolePermissions = map[string][]Permission{
	"admin": {PermCatalogWrite, PermStockWrite, PermOrdersManage, PermUsersRead},
	"user":  {},
}

func roleHas(role string, p Permission) bool {
	for _, granted := range rolePermissions[role] {
		if granted == p {
			return true
		}
	}
	return false
}
