package config

import model "lot-auction/internal/models"

// DefaultSeed returns the sample lots and organizations shipped with the service
func DefaultSeed() SeedConfig {
	return SeedConfig{
		Lots: []model.Lot{
			{LotID: "lot-kohli", Name: "Virat Kohli", Role: "Batsman", BasePrice: 20000},
			{LotID: "lot-sharma", Name: "Rohit Sharma", Role: "Batsman", BasePrice: 18000},
			{LotID: "lot-rahul", Name: "KL Rahul", Role: "Batsman", BasePrice: 15000},
			{LotID: "lot-dhawan", Name: "Shikhar Dhawan", Role: "Batsman", BasePrice: 12000},
			{LotID: "lot-bumrah", Name: "Jasprit Bumrah", Role: "Bowler", BasePrice: 22000},
			{LotID: "lot-rashid", Name: "Rashid Khan", Role: "Bowler", BasePrice: 19000},
			{LotID: "lot-chahal", Name: "Yuzvendra Chahal", Role: "Bowler", BasePrice: 13000},
			{LotID: "lot-boult", Name: "Trent Boult", Role: "Bowler", BasePrice: 16000},
		},
		Organizations: []model.Organization{
			{OrganizationID: "team-mumbai", Name: "Mumbai Strikers", CaptainID: "captain1", TotalBudget: 100000},
			{OrganizationID: "team-delhi", Name: "Delhi Dynamos", CaptainID: "captain2", TotalBudget: 100000},
			{OrganizationID: "team-chennai", Name: "Chennai Super Kings", CaptainID: "captain3", TotalBudget: 100000},
			{OrganizationID: "team-bangalore", Name: "Bangalore Royals", CaptainID: "captain4", TotalBudget: 100000},
		},
	}
}
