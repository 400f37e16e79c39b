package mssql

import (
	"github.com/ekaya-inc/ekaya-jobenv/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        adapterType,
			DisplayName: "Microsoft SQL Server",
			Description: "SQL Server 2019+, Azure SQL Database",
			Schemes:     []string{"sqlserver", "mssql"},
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
