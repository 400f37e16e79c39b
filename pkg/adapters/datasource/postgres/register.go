package postgres

import (
	"github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        adapterType,
			DisplayName: "PostgreSQL",
			Description: "PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Schemes:     []string{"postgres", "postgresql"},
		},
		Factory: func(config map[string]any) (datasource.ConnectionConfig, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
	})
}
