package tables

import (
	"fmt"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// UsersKey is the registry key of the member directory layout.
const UsersKey = "users"

func init() {
	registerUsers()
}

func registerUsers() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         UsersKey,
			Group:       "Registry",
			Label:       "Users",
			Description: "Member directory used for pinned imports",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "Name", Type: core.FieldText, Required: true},
			{Name: "Email", Type: core.FieldEmail, Required: true, Normalizer: NormalizeEmail},
			{Name: "CNIC", Type: core.FieldCNIC, Required: true},
			{Name: "Phone", Type: core.FieldText},
			{Name: "Role", Type: core.FieldEnum, EnumValues: []string{string(core.RoleAdmin), string(core.RoleClient)}, Normalizer: NormalizeRole},
			{Name: "Status", Type: core.FieldEnum, EnumValues: []string{core.StatusActive, core.StatusSuspended}, Normalizer: NormalizeStatus},
			{Name: "ID", Type: core.FieldText},
		},
		BuildRecord: buildUser,
	})
}

func buildUser(row []string, idx core.HeaderIndex) (any, error) {
	role, err := core.ParseRole(idx.Cell(row, "Role"))
	if err != nil {
		return nil, fmt.Errorf("invalid enum for %q: %w", "Role", err)
	}

	status := NormalizeStatus(idx.Cell(row, "Status"))
	if status == "" {
		status = core.StatusActive
	}

	return core.User{
		ID:     idx.Cell(row, "ID"),
		Name:   idx.Cell(row, "Name"),
		Email:  NormalizeEmail(idx.Cell(row, "Email")),
		Phone:  idx.Cell(row, "Phone"),
		CNIC:   FormatCNIC(idx.Cell(row, "CNIC")),
		Role:   role,
		Status: status,
	}, nil
}
