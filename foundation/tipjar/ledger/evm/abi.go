package evm

// tipJarABI is the interface of the deployed tip jar contract.
const tipJarABI = `[
	{
		"type": "event",
		"name": "NewMemo",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "timestamp", "type": "uint256", "indexed": false},
			{"name": "name", "type": "string", "indexed": false},
			{"name": "amount", "type": "uint256", "indexed": false},
			{"name": "message", "type": "string", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "getMemos",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{
				"name": "",
				"type": "tuple[]",
				"components": [
					{"name": "from", "type": "address"},
					{"name": "timestamp", "type": "uint256"},
					{"name": "name", "type": "string"},
					{"name": "amount", "type": "uint256"},
					{"name": "message", "type": "string"}
				]
			}
		]
	},
	{
		"type": "function",
		"name": "tip",
		"stateMutability": "payable",
		"inputs": [
			{"name": "_name", "type": "string"},
			{"name": "_message", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "owner",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "address"}]
	},
	{
		"type": "function",
		"name": "withdrawTips",
		"stateMutability": "nonpayable",
		"inputs": [],
		"outputs": []
	}
]`

// Set of contract method names.
const (
	methodGetMemos     = "getMemos"
	methodTip          = "tip"
	methodOwner        = "owner"
	methodWithdrawTips = "withdrawTips"
)
